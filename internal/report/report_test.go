package report

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yameogogildas/transactions/internal/apperr"
	"github.com/yameogogildas/transactions/internal/authz"
	"github.com/yameogogildas/transactions/internal/models"
)

var (
	service = authz.Identity{UserID: 100, Email: "svc@test.local", Role: authz.RoleService}
	client  = authz.Identity{UserID: 101, Email: "cli@test.local", Role: authz.RoleClient}
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.ExchangeRate{}, &models.Transaction{}, &models.Alert{}))
	return db
}

func testService(db *gorm.DB) *Service {
	return NewService(db, Defaults{
		HighAmountThreshold: dec("10000"),
		VelocityMax:         3,
		VelocityWindow:      5 * time.Minute,
	})
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedTx(t *testing.T, db *gorm.DB, userID uint, amount, currency, channel, status string, rateID *uint) models.Transaction {
	t.Helper()
	tx := models.Transaction{
		UserID:         userID,
		Amount:         dec(amount),
		Currency:       currency,
		Service:        channel,
		Number:         uuid.NewString(),
		Status:         status,
		ExchangeRateID: rateID,
	}
	require.NoError(t, db.Create(&tx).Error)
	return tx
}

func TestSummaryAggregates(t *testing.T) {
	db := testDB(t)
	svc := testService(db)
	ctx := context.Background()

	rate := models.ExchangeRate{SourceCurrency: "USD", TargetCurrency: "EUR", Rate: dec("0.92"), RecordedAt: time.Now()}
	require.NoError(t, db.Create(&rate).Error)

	seedTx(t, db, 1, "100.00", "USD", "Western Union", models.StatusPending, &rate.ID)
	seedTx(t, db, 1, "250.00", "USD", "Western Union", models.StatusValidated, nil)
	seedTx(t, db, 2, "75.50", "EUR", "RIA", models.StatusPending, nil)

	got, err := svc.Summary(ctx, service)
	require.NoError(t, err)

	require.Len(t, got.PerService, 2)
	byService := map[string]ServiceTotal{}
	for _, s := range got.PerService {
		byService[s.Service] = s
	}
	assert.Equal(t, int64(2), byService["Western Union"].Count)
	assert.True(t, byService["Western Union"].Total.Equal(dec("350.00")))
	assert.Equal(t, int64(1), byService["RIA"].Count)
	assert.True(t, byService["RIA"].Total.Equal(dec("75.50")))

	byCurrency := map[string]CurrencyTotal{}
	for _, c := range got.PerCurrency {
		byCurrency[c.Currency] = c
	}
	assert.True(t, byCurrency["USD"].Total.Equal(dec("350.00")))
	assert.True(t, byCurrency["EUR"].Total.Equal(dec("75.50")))

	byStatus := map[string]int64{}
	for _, s := range got.PerStatus {
		byStatus[s.Status] = s.Count
	}
	assert.Equal(t, int64(2), byStatus[models.StatusPending])
	assert.Equal(t, int64(1), byStatus[models.StatusValidated])

	require.Len(t, got.RatedDetail, 1)
	detail := got.RatedDetail[0]
	assert.True(t, detail.Rate.Equal(dec("0.92")))
	assert.Equal(t, "USD", detail.Currency)
}

func TestSummaryEmptyLedger(t *testing.T) {
	svc := testService(testDB(t))

	got, err := svc.Summary(context.Background(), service)
	require.NoError(t, err)
	assert.Empty(t, got.PerService)
	assert.Empty(t, got.PerCurrency)
	assert.Empty(t, got.PerStatus)
	assert.Empty(t, got.RatedDetail)
}

func TestSummaryIsIdempotent(t *testing.T) {
	db := testDB(t)
	svc := testService(db)
	ctx := context.Background()

	seedTx(t, db, 1, "100.00", "USD", "RIA", models.StatusPending, nil)
	seedTx(t, db, 2, "200.00", "USD", "RIA", models.StatusPending, nil)

	first, err := svc.Summary(ctx, service)
	require.NoError(t, err)
	second, err := svc.Summary(ctx, service)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSummaryExcludesDanglingRates(t *testing.T) {
	db := testDB(t)
	svc := testService(db)
	ctx := context.Background()

	rate := models.ExchangeRate{SourceCurrency: "USD", TargetCurrency: "EUR", Rate: dec("0.92"), RecordedAt: time.Now()}
	require.NoError(t, db.Create(&rate).Error)
	seedTx(t, db, 1, "100.00", "USD", "RIA", models.StatusPending, &rate.ID)

	got, err := svc.Summary(ctx, service)
	require.NoError(t, err)
	require.Len(t, got.RatedDetail, 1)

	require.NoError(t, db.Unscoped().Delete(&rate).Error)

	got, err = svc.Summary(ctx, service)
	require.NoError(t, err)
	assert.Empty(t, got.RatedDetail, "transactions whose rate is gone drop out of the detail view")
}

func TestSummaryForbiddenForNonService(t *testing.T) {
	svc := testService(testDB(t))

	_, err := svc.Summary(context.Background(), client)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	_, err = svc.Summary(context.Background(), authz.Identity{UserID: 5, Role: authz.RoleAgent})
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

func TestHighAmountRule(t *testing.T) {
	db := testDB(t)
	svc := testService(db)
	ctx := context.Background()

	big := seedTx(t, db, 1, "15000.00", "USD", "Western Union", models.StatusPending, nil)
	seedTx(t, db, 1, "9999.99", "USD", "RIA", models.StatusPending, nil)
	edge := seedTx(t, db, 2, "10000.00", "USD", "RIA", models.StatusPending, nil)

	findings, err := svc.Alerts(ctx, service, Options{})
	require.NoError(t, err)

	var high []Finding
	for _, f := range findings {
		if f.Reason == ReasonHighAmount {
			high = append(high, f)
		}
	}
	require.Len(t, high, 2, "threshold is inclusive")
	ids := []uint{high[0].TransactionID, high[1].TransactionID}
	assert.Contains(t, ids, big.ID)
	assert.Contains(t, ids, edge.ID)
}

func TestHighAmountThresholdOverride(t *testing.T) {
	db := testDB(t)
	svc := testService(db)
	ctx := context.Background()

	seedTx(t, db, 1, "500.00", "USD", "RIA", models.StatusPending, nil)

	findings, err := svc.Alerts(ctx, service, Options{})
	require.NoError(t, err)
	assert.Empty(t, findings)

	threshold := dec("400")
	findings, err = svc.Alerts(ctx, service, Options{Threshold: &threshold})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, ReasonHighAmount, findings[0].Reason)
}

func TestVelocityRule(t *testing.T) {
	db := testDB(t)
	svc := testService(db)
	ctx := context.Background()

	// four fresh transactions for user 1: over the 3-in-5-minutes limit
	for i := 0; i < 4; i++ {
		seedTx(t, db, 1, "10.00", "USD", "RIA", models.StatusPending, nil)
	}
	// three for user 2: at the limit, not over it
	for i := 0; i < 3; i++ {
		seedTx(t, db, 2, "10.00", "USD", "RIA", models.StatusPending, nil)
	}

	findings, err := svc.Alerts(ctx, service, Options{})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, ReasonVelocity, findings[0].Reason)
	assert.Equal(t, uint(1), findings[0].UserID)
	assert.Equal(t, int64(4), findings[0].Count)
}

func TestVelocityWindowAgesOut(t *testing.T) {
	db := testDB(t)
	svc := testService(db)
	ctx := context.Background()

	old := time.Now().UTC().Add(-10 * time.Minute)
	for i := 0; i < 4; i++ {
		tx := seedTx(t, db, 1, "10.00", "USD", "RIA", models.StatusPending, nil)
		require.NoError(t, db.Model(&models.Transaction{}).Where("id = ?", tx.ID).
			Update("created_at", old).Error)
	}
	// a single fresh one does not tip the count
	seedTx(t, db, 1, "10.00", "USD", "RIA", models.StatusPending, nil)

	findings, err := svc.Alerts(ctx, service, Options{})
	require.NoError(t, err)
	assert.Empty(t, findings, "aged-out transactions leave the window")
}

func TestRulesConcatenate(t *testing.T) {
	db := testDB(t)
	svc := testService(db)
	ctx := context.Background()

	// user 1 trips both rules with the same transactions
	for i := 0; i < 4; i++ {
		seedTx(t, db, 1, "20000.00", "USD", "RIA", models.StatusPending, nil)
	}

	findings, err := svc.Alerts(ctx, service, Options{})
	require.NoError(t, err)
	assert.Len(t, findings, 5, "4 high-amount findings plus 1 velocity finding, not deduplicated")
}

func TestAlertsForbiddenForNonService(t *testing.T) {
	svc := testService(testDB(t))

	_, err := svc.Alerts(context.Background(), client, Options{})
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

func TestRecordPersistsHighAmountFindingsOnce(t *testing.T) {
	db := testDB(t)
	svc := testService(db)
	ctx := context.Background()

	tx := seedTx(t, db, 1, "15000.00", "USD", "RIA", models.StatusPending, nil)

	_, err := svc.Alerts(ctx, service, Options{Record: true})
	require.NoError(t, err)
	_, err = svc.Alerts(ctx, service, Options{Record: true})
	require.NoError(t, err)

	recorded, err := svc.Recorded(ctx, service)
	require.NoError(t, err)
	require.Len(t, recorded, 1, "re-running detection does not duplicate stored alerts")
	assert.Equal(t, tx.ID, recorded[0].TransactionID)
	assert.Equal(t, ReasonHighAmount, recorded[0].Reason)
}
