// Package rates implements the exchange-rate registry: CRUD over
// (source, target, rate) pairs with a uniqueness guarantee on the
// normalized currency pair.
package rates

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yameogogildas/transactions/internal/apperr"
	"github.com/yameogogildas/transactions/internal/authz"
	"github.com/yameogogildas/transactions/internal/models"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// NormalizePair trims and upper-cases both currency codes.
func NormalizePair(source, target string) (string, string) {
	return strings.ToUpper(strings.TrimSpace(source)), strings.ToUpper(strings.TrimSpace(target))
}

func validatePair(source, target string, rate decimal.Decimal) error {
	if source == "" || target == "" {
		return apperr.New(apperr.Validation, "source and target currencies are required")
	}
	if source == target {
		return apperr.New(apperr.Validation, "source and target currencies must differ")
	}
	if !rate.IsPositive() {
		return apperr.New(apperr.Validation, "rate must be strictly positive")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, caller authz.Identity, source, target string, rate decimal.Decimal) (*models.ExchangeRate, error) {
	if err := authz.Require(caller, authz.OpManageRates); err != nil {
		return nil, err
	}
	source, target = NormalizePair(source, target)
	if err := validatePair(source, target, rate); err != nil {
		return nil, err
	}

	r := models.ExchangeRate{
		SourceCurrency: source,
		TargetCurrency: target,
		Rate:           rate,
		RecordedAt:     time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Newf(apperr.Conflict, "exchange rate %s->%s already exists", source, target)
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to store exchange rate", err)
	}
	return &r, nil
}

// List returns all rates, most recently recorded first. Unlike the
// historical behavior this returns an empty slice rather than an error
// when no rates exist, matching every other listing operation.
func (s *Service) List(ctx context.Context, caller authz.Identity) ([]models.ExchangeRate, error) {
	if err := authz.Require(caller, authz.OpManageRates); err != nil {
		return nil, err
	}
	var out []models.ExchangeRate
	if err := s.db.WithContext(ctx).Order("recorded_at desc").Find(&out).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list exchange rates", err)
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, caller authz.Identity, id uint, source, target string, rate decimal.Decimal) (*models.ExchangeRate, error) {
	if err := authz.Require(caller, authz.OpManageRates); err != nil {
		return nil, err
	}
	source, target = NormalizePair(source, target)
	if err := validatePair(source, target, rate); err != nil {
		return nil, err
	}

	var r models.ExchangeRate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&r, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "exchange rate not found")
			}
			return apperr.Wrap(apperr.Internal, "failed to load exchange rate", err)
		}

		r.SourceCurrency = source
		r.TargetCurrency = target
		r.Rate = rate
		r.RecordedAt = time.Now().UTC()

		if err := tx.Save(&r).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Newf(apperr.Conflict, "exchange rate %s->%s already exists", source, target)
			}
			return apperr.Wrap(apperr.Internal, "failed to update exchange rate", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Delete removes the rate and clears the reference on any transaction
// that points at it. Transaction history is never deleted here.
func (s *Service) Delete(ctx context.Context, caller authz.Identity, id uint) error {
	if err := authz.Require(caller, authz.OpManageRates); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r models.ExchangeRate
		if err := tx.First(&r, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "exchange rate not found")
			}
			return apperr.Wrap(apperr.Internal, "failed to load exchange rate", err)
		}

		if err := tx.Model(&models.Transaction{}).
			Where("exchange_rate_id = ?", r.ID).
			Update("exchange_rate_id", nil).Error; err != nil {
			return apperr.Wrap(apperr.Internal, "failed to detach transactions", err)
		}

		if err := tx.Unscoped().Delete(&r).Error; err != nil {
			return apperr.Wrap(apperr.Internal, "failed to delete exchange rate", err)
		}
		return nil
	})
}
