package store

import (
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yameogogildas/transactions/configs"
	"github.com/yameogogildas/transactions/internal/logger"
	"github.com/yameogogildas/transactions/internal/models"
)

var DB *gorm.DB

func NewDB() {
	dsn := configs.AppConfig.DB.DSN
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: false,
	}), &gorm.Config{
		// Unique violations come back as gorm.ErrDuplicatedKey so
		// racing creators get a deterministic conflict.
		TranslateError: true,
	})
	if err != nil {
		logger.Log.Fatal("failed to connect to database", zap.Error(err))
	}
	DB = db
	logger.Log.Info("connected to the database")
}

func DBMigrate() {
	if err := DB.AutoMigrate(
		&models.User{},
		&models.ExchangeRate{},
		&models.Transaction{},
		&models.Alert{},
	); err != nil {
		logger.Log.Fatal("migration failed", zap.Error(err))
	}
	logger.Log.Info("migrations loaded")
}
