// Package ledger is the authoritative store of transfer transactions:
// creation, role-scoped listing, owner edits, deletion, and the status
// state machine. Every mutation is authorized against the caller and
// committed atomically.
package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yameogogildas/transactions/internal/apperr"
	"github.com/yameogogildas/transactions/internal/authz"
	"github.com/yameogogildas/transactions/internal/logger"
	"github.com/yameogogildas/transactions/internal/models"
)

var maxAmount = decimal.NewFromInt(1_000_000)

// ReceiptRenderer produces a receipt for a validated transaction.
// Rendering is best-effort: a failure never rolls back the transition.
type ReceiptRenderer interface {
	Render(tx models.Transaction, owner models.User) ([]byte, error)
}

type Service struct {
	db       *gorm.DB
	receipts ReceiptRenderer
}

type Option func(*Service)

func WithReceiptRenderer(r ReceiptRenderer) Option {
	return func(s *Service) { s.receipts = r }
}

func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{db: db}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateInput is the payload for a new transaction. Status and owner
// are never caller-supplied: status starts at pending, the owner is the
// caller.
type CreateInput struct {
	Amount         decimal.Decimal
	Currency       string
	Service        string
	Number         string
	ExchangeRateID *uint
}

func (in *CreateInput) validate() error {
	in.Currency = strings.TrimSpace(in.Currency)
	in.Service = strings.TrimSpace(in.Service)
	in.Number = strings.TrimSpace(in.Number)

	if !in.Amount.IsPositive() {
		return apperr.New(apperr.Validation, "amount must be strictly positive")
	}
	if in.Amount.GreaterThan(maxAmount) {
		return apperr.New(apperr.Validation, "amount exceeds the allowed maximum")
	}
	if in.Currency == "" {
		return apperr.New(apperr.Validation, "currency is required")
	}
	if in.Service == "" {
		return apperr.New(apperr.Validation, "service is required")
	}
	if in.Number == "" {
		return apperr.New(apperr.Validation, "transaction number is required")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, caller authz.Identity, in CreateInput) (*models.Transaction, error) {
	if err := authz.Require(caller, authz.OpCreateTransaction); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	t := models.Transaction{
		UserID:         caller.UserID,
		Amount:         in.Amount,
		Currency:       in.Currency,
		Service:        in.Service,
		Number:         in.Number,
		Status:         models.StatusPending,
		ExchangeRateID: in.ExchangeRateID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.ExchangeRateID != nil {
			if err := requireRate(tx, *in.ExchangeRateID); err != nil {
				return err
			}
		}
		if err := tx.Create(&t).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Newf(apperr.Conflict, "transaction number %q is already used", in.Number)
			}
			return apperr.Wrap(apperr.Internal, "failed to store transaction", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns the transactions visible to the caller: clients see
// their own, agents see the pending queue, service staff see all.
func (s *Service) List(ctx context.Context, caller authz.Identity) ([]models.Transaction, error) {
	if err := authz.Require(caller, authz.OpListTransactions); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx)
	switch authz.NormalizeRole(caller.Role) {
	case authz.RoleService:
		// unrestricted
	case authz.RoleAgent:
		q = q.Where("status = ?", models.StatusPending)
	case authz.RoleClient:
		q = q.Where("user_id = ?", caller.UserID)
	}

	var out []models.Transaction
	if err := q.Order("created_at desc").Find(&out).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list transactions", err)
	}
	return out, nil
}

// UpdateInput is a field-level patch. Nil fields are left untouched.
// SetExchangeRate distinguishes "leave the reference alone" from
// "clear it" (true with a nil ExchangeRateID).
type UpdateInput struct {
	Amount          *decimal.Decimal
	Currency        *string
	Service         *string
	Number          *string
	SetExchangeRate bool
	ExchangeRateID  *uint
}

func (s *Service) Update(ctx context.Context, caller authz.Identity, id uint, in UpdateInput) (*models.Transaction, error) {
	if err := authz.Require(caller, authz.OpUpdateTransaction); err != nil {
		return nil, err
	}

	var t models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&t, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "transaction not found")
			}
			return apperr.Wrap(apperr.Internal, "failed to load transaction", err)
		}
		if t.UserID != caller.UserID {
			return apperr.New(apperr.Forbidden, "not the owner of this transaction")
		}
		if t.Status != models.StatusPending {
			return apperr.New(apperr.InvalidTransition, "only pending transactions can be edited")
		}

		if in.Amount != nil {
			if !in.Amount.IsPositive() || in.Amount.GreaterThan(maxAmount) {
				return apperr.New(apperr.Validation, "amount out of range")
			}
			t.Amount = *in.Amount
		}
		if in.Currency != nil {
			if strings.TrimSpace(*in.Currency) == "" {
				return apperr.New(apperr.Validation, "currency cannot be empty")
			}
			t.Currency = strings.TrimSpace(*in.Currency)
		}
		if in.Service != nil {
			if strings.TrimSpace(*in.Service) == "" {
				return apperr.New(apperr.Validation, "service cannot be empty")
			}
			t.Service = strings.TrimSpace(*in.Service)
		}
		if in.Number != nil {
			if strings.TrimSpace(*in.Number) == "" {
				return apperr.New(apperr.Validation, "transaction number cannot be empty")
			}
			t.Number = strings.TrimSpace(*in.Number)
		}
		if in.SetExchangeRate {
			if in.ExchangeRateID != nil {
				if err := requireRate(tx, *in.ExchangeRateID); err != nil {
					return err
				}
			}
			t.ExchangeRateID = in.ExchangeRateID
		}

		if err := tx.Save(&t).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Newf(apperr.Conflict, "transaction number %q is already used", t.Number)
			}
			return apperr.Wrap(apperr.Internal, "failed to update transaction", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes a transaction and its alerts. Only the owner may
// delete; exchange rates referenced by the transaction are untouched.
func (s *Service) Delete(ctx context.Context, caller authz.Identity, id uint) error {
	if err := authz.Require(caller, authz.OpDeleteTransaction); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Transaction
		if err := tx.First(&t, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "transaction not found")
			}
			return apperr.Wrap(apperr.Internal, "failed to load transaction", err)
		}
		if t.UserID != caller.UserID {
			return apperr.New(apperr.Forbidden, "not the owner of this transaction")
		}

		if err := tx.Unscoped().Where("transaction_id = ?", t.ID).Delete(&models.Alert{}).Error; err != nil {
			return apperr.Wrap(apperr.Internal, "failed to delete alerts", err)
		}
		if err := tx.Unscoped().Delete(&t).Error; err != nil {
			return apperr.Wrap(apperr.Internal, "failed to delete transaction", err)
		}
		return nil
	})
}

// Key locates a transaction either by primary key or by its number.
type Key struct {
	id     uint
	number string
}

func ByID(id uint) Key { return Key{id: id} }

func ByNumber(number string) Key { return Key{number: strings.TrimSpace(number)} }

func (k Key) find(tx *gorm.DB, t *models.Transaction) error {
	q := tx
	if k.number != "" {
		q = q.Where("number = ?", k.number)
	} else {
		q = q.Where("id = ?", k.id)
	}
	if err := q.First(t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.NotFound, "transaction not found")
		}
		return apperr.Wrap(apperr.Internal, "failed to load transaction", err)
	}
	return nil
}

// SetStatus runs the state machine: pending -> validated or
// pending -> cancelled, nothing else. Both terminal states are final.
// The same rules apply whether the transaction is addressed by id or
// by number.
func (s *Service) SetStatus(ctx context.Context, caller authz.Identity, key Key, target string) (*models.Transaction, error) {
	if err := authz.Require(caller, authz.OpSetStatus); err != nil {
		return nil, err
	}
	if target != models.StatusValidated && target != models.StatusCancelled {
		return nil, apperr.Newf(apperr.InvalidTransition, "target status must be %q or %q", models.StatusValidated, models.StatusCancelled)
	}

	var t models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := key.find(tx, &t); err != nil {
			return err
		}
		if t.Status != models.StatusPending {
			return apperr.Newf(apperr.InvalidTransition, "transaction is %s, only pending transactions can change status", t.Status)
		}
		t.Status = target
		if err := tx.Model(&t).Update("status", target).Error; err != nil {
			return apperr.Wrap(apperr.Internal, "failed to update status", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if target == models.StatusValidated && s.receipts != nil {
		s.renderReceipt(ctx, t)
	}
	return &t, nil
}

// renderReceipt is fired after a successful validation. Failures are
// logged and otherwise ignored.
func (s *Service) renderReceipt(ctx context.Context, t models.Transaction) {
	var owner models.User
	if err := s.db.WithContext(ctx).First(&owner, t.UserID).Error; err != nil {
		logger.Log.Warn("receipt skipped, owner lookup failed",
			zap.Uint("transaction_id", t.ID), zap.Error(err))
		return
	}
	if _, err := s.receipts.Render(t, owner); err != nil {
		logger.Log.Warn("receipt rendering failed",
			zap.Uint("transaction_id", t.ID), zap.Error(err))
	}
}

// Receipt renders the receipt for a single transaction on demand.
// Owners can fetch their own receipts, service staff anyone's.
func (s *Service) Receipt(ctx context.Context, caller authz.Identity, id uint) ([]byte, error) {
	if s.receipts == nil {
		return nil, apperr.New(apperr.Internal, "receipt rendering is not configured")
	}

	var t models.Transaction
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "transaction not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to load transaction", err)
	}
	if t.UserID != caller.UserID && authz.NormalizeRole(caller.Role) != authz.RoleService {
		return nil, apperr.New(apperr.Forbidden, "not the owner of this transaction")
	}

	var owner models.User
	if err := s.db.WithContext(ctx).First(&owner, t.UserID).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to load transaction owner", err)
	}
	out, err := s.receipts.Render(t, owner)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to render receipt", err)
	}
	return out, nil
}

func requireRate(tx *gorm.DB, id uint) error {
	var r models.ExchangeRate
	if err := tx.First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.NotFound, "exchange rate not found")
		}
		return apperr.Wrap(apperr.Internal, "failed to load exchange rate", err)
	}
	return nil
}
