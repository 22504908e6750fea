// Package report is the read-only aggregation and alert engine. Every
// view is recomputed from the current ledger snapshot at call time;
// nothing here mutates transactions.
package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yameogogildas/transactions/internal/apperr"
	"github.com/yameogogildas/transactions/internal/authz"
	"github.com/yameogogildas/transactions/internal/models"
)

const (
	ReasonHighAmount = "high amount"
	ReasonVelocity   = "multiple transactions in short window"
)

// Defaults are the detection thresholds used when a caller does not
// override them per request.
type Defaults struct {
	HighAmountThreshold decimal.Decimal
	VelocityMax         int
	VelocityWindow      time.Duration
}

type Service struct {
	db       *gorm.DB
	defaults Defaults
}

func NewService(db *gorm.DB, defaults Defaults) *Service {
	return &Service{db: db, defaults: defaults}
}

type ServiceTotal struct {
	Service string          `json:"service"`
	Count   int64           `json:"count"`
	Total   decimal.Decimal `json:"total"`
}

type CurrencyTotal struct {
	Currency string          `json:"currency"`
	Total    decimal.Decimal `json:"total"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// RatedTransaction is a transaction joined with its still-existing
// exchange rate.
type RatedTransaction struct {
	Number    string          `json:"number"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Service   string          `json:"service"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	Rate      decimal.Decimal `json:"rate"`
}

type Summary struct {
	PerService  []ServiceTotal     `json:"per_service"`
	PerCurrency []CurrencyTotal    `json:"per_currency"`
	PerStatus   []StatusCount      `json:"per_status"`
	RatedDetail []RatedTransaction `json:"rated_detail"`
}

// Summary builds the supervision dashboard: grouped totals plus the
// rated-transaction detail view. Service role only.
func (s *Service) Summary(ctx context.Context, caller authz.Identity) (*Summary, error) {
	if err := authz.Require(caller, authz.OpViewSupervision); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	out := &Summary{
		PerService:  []ServiceTotal{},
		PerCurrency: []CurrencyTotal{},
		PerStatus:   []StatusCount{},
		RatedDetail: []RatedTransaction{},
	}

	if err := db.Model(&models.Transaction{}).
		Select("service, count(id) as count, coalesce(sum(amount), 0) as total").
		Group("service").Order("service").
		Scan(&out.PerService).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to aggregate by service", err)
	}

	if err := db.Model(&models.Transaction{}).
		Select("currency, coalesce(sum(amount), 0) as total").
		Group("currency").Order("currency").
		Scan(&out.PerCurrency).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to aggregate by currency", err)
	}

	if err := db.Model(&models.Transaction{}).
		Select("status, count(id) as count").
		Group("status").Order("status").
		Scan(&out.PerStatus).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to aggregate by status", err)
	}

	// Inner join: transactions whose referenced rate no longer exists
	// drop out of the detail view.
	if err := db.Model(&models.Transaction{}).
		Select("transactions.number, transactions.amount, transactions.currency, transactions.service, transactions.status, transactions.created_at, exchange_rates.rate").
		Joins("JOIN exchange_rates ON exchange_rates.id = transactions.exchange_rate_id AND exchange_rates.deleted_at IS NULL").
		Where("transactions.exchange_rate_id IS NOT NULL").
		Order("transactions.created_at desc").
		Scan(&out.RatedDetail).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to build rated detail", err)
	}

	return out, nil
}

// Finding is one detected alert. High-amount findings carry the
// transaction; velocity findings carry the user and the count.
type Finding struct {
	Reason        string          `json:"reason"`
	TransactionID uint            `json:"transaction_id,omitempty"`
	Number        string          `json:"number,omitempty"`
	Amount        decimal.Decimal `json:"amount,omitempty"`
	UserID        uint            `json:"user_id,omitempty"`
	Count         int64           `json:"count,omitempty"`
	RaisedAt      time.Time       `json:"raised_at"`
}

// Options override the configured detection defaults for one call.
type Options struct {
	Threshold *decimal.Decimal
	Window    *time.Duration
	// Record persists high-amount findings as Alert rows. Findings
	// already recorded for the same transaction and reason are skipped.
	Record bool
}

// Alerts runs the two detection rules and concatenates their findings.
// The rules are independent; a transaction can appear under both.
func (s *Service) Alerts(ctx context.Context, caller authz.Identity, opts Options) ([]Finding, error) {
	if err := authz.Require(caller, authz.OpViewAlerts); err != nil {
		return nil, err
	}

	threshold := s.defaults.HighAmountThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	window := s.defaults.VelocityWindow
	if opts.Window != nil {
		window = *opts.Window
	}

	now := time.Now().UTC()
	findings := []Finding{}

	var suspect []models.Transaction
	if err := s.db.WithContext(ctx).
		Where("amount >= ?", threshold).
		Order("created_at desc").
		Find(&suspect).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to scan for high amounts", err)
	}
	for _, t := range suspect {
		findings = append(findings, Finding{
			Reason:        ReasonHighAmount,
			TransactionID: t.ID,
			Number:        t.Number,
			Amount:        t.Amount,
			UserID:        t.UserID,
			RaisedAt:      now,
		})
	}

	type velocityRow struct {
		UserID uint
		Count  int64
	}
	var bursts []velocityRow
	cutoff := now.Add(-window)
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("user_id, count(id) as count").
		Where("created_at >= ?", cutoff).
		Group("user_id").
		Having("count(id) > ?", s.defaults.VelocityMax).
		Scan(&bursts).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to scan for transaction bursts", err)
	}
	for _, b := range bursts {
		findings = append(findings, Finding{
			Reason:   ReasonVelocity,
			UserID:   b.UserID,
			Count:    b.Count,
			RaisedAt: now,
		})
	}

	if opts.Record {
		if err := s.record(ctx, findings); err != nil {
			return nil, err
		}
	}
	return findings, nil
}

func (s *Service) record(ctx context.Context, findings []Finding) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, f := range findings {
			if f.TransactionID == 0 {
				continue // velocity findings are per user, not per transaction
			}
			var n int64
			if err := tx.Model(&models.Alert{}).
				Where("transaction_id = ? AND reason = ?", f.TransactionID, f.Reason).
				Count(&n).Error; err != nil {
				return apperr.Wrap(apperr.Internal, "failed to check existing alerts", err)
			}
			if n > 0 {
				continue
			}
			a := models.Alert{TransactionID: f.TransactionID, Reason: f.Reason, RaisedAt: f.RaisedAt}
			if err := tx.Create(&a).Error; err != nil {
				return apperr.Wrap(apperr.Internal, "failed to record alert", err)
			}
		}
		return nil
	})
}

// Recorded lists the persisted alerts, newest first. Service role only.
func (s *Service) Recorded(ctx context.Context, caller authz.Identity) ([]models.Alert, error) {
	if err := authz.Require(caller, authz.OpViewAlerts); err != nil {
		return nil, err
	}
	var out []models.Alert
	if err := s.db.WithContext(ctx).Order("raised_at desc").Find(&out).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list recorded alerts", err)
	}
	return out, nil
}
