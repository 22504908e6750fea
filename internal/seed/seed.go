package seed

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yameogogildas/transactions/internal/logger"
	"github.com/yameogogildas/transactions/internal/models"
	"github.com/yameogogildas/transactions/internal/store"
)

const seedPassword = "password123"

var demoUsers = []struct {
	Name  string
	Email string
	Role  string
}{
	{"Demo Client", "client@demo.local", "client"},
	{"Demo Agent", "agent@demo.local", "agent"},
	{"Demo Service", "service@demo.local", "service"},
}

// Run seeds one user per role, two starter rates and a couple of
// pending transactions. Idempotent: skipped when the demo users exist.
func Run() {
	db := store.DB

	var count int64
	emails := make([]string, 0, len(demoUsers))
	for _, u := range demoUsers {
		emails = append(emails, u.Email)
	}
	if err := db.Model(&models.User{}).Where("email IN ?", emails).Count(&count).Error; err != nil {
		logger.Log.Fatal("seed check failed", zap.Error(err))
	}
	if count >= int64(len(demoUsers)) {
		logger.Log.Info("seed already applied, skipping")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Fatal("failed to hash seed password", zap.Error(err))
	}
	hashed := string(hash)

	err = db.Transaction(func(tx *gorm.DB) error {
		users := make([]models.User, 0, len(demoUsers))
		for _, u := range demoUsers {
			user := models.User{Name: u.Name, Email: u.Email, Password: hashed, Role: u.Role}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			users = append(users, user)
		}

		now := time.Now().UTC()
		usdEur := models.ExchangeRate{
			SourceCurrency: "USD",
			TargetCurrency: "EUR",
			Rate:           decimal.RequireFromString("0.92"),
			RecordedAt:     now,
		}
		eurUsd := models.ExchangeRate{
			SourceCurrency: "EUR",
			TargetCurrency: "USD",
			Rate:           decimal.RequireFromString("1.09"),
			RecordedAt:     now,
		}
		if err := tx.Create(&usdEur).Error; err != nil {
			return err
		}
		if err := tx.Create(&eurUsd).Error; err != nil {
			return err
		}

		client := users[0]
		seedTxs := []models.Transaction{
			{
				UserID:         client.ID,
				Amount:         decimal.RequireFromString("250.00"),
				Currency:       "USD",
				Service:        "Western Union",
				Number:         uuid.NewString(),
				Status:         models.StatusPending,
				ExchangeRateID: &usdEur.ID,
			},
			{
				UserID:   client.ID,
				Amount:   decimal.RequireFromString("120.50"),
				Currency: "EUR",
				Service:  "RIA",
				Number:   uuid.NewString(),
				Status:   models.StatusPending,
			},
		}
		for i := range seedTxs {
			if err := tx.Create(&seedTxs[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Log.Fatal("seed failed", zap.Error(err))
	}
	logger.Log.Info("seeded demo users", zap.String("password", seedPassword))
}
