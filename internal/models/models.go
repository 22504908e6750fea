package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction statuses. Pending is the sole initial status; the other
// two are terminal.
const (
	StatusPending   = "pending"
	StatusValidated = "validated"
	StatusCancelled = "cancelled"
)

type User struct {
	gorm.Model
	Name     string `gorm:"uniqueIndex;size:100;not null"`
	Email    string `gorm:"uniqueIndex;size:120;not null"`
	Password string `gorm:"size:255;not null"`
	Role     string `gorm:"size:20;not null;default:client"`

	Transactions []Transaction `gorm:"foreignKey:UserID"`
}

type ExchangeRate struct {
	gorm.Model
	SourceCurrency string          `gorm:"size:10;not null;uniqueIndex:uix_currency_pair"`
	TargetCurrency string          `gorm:"size:10;not null;uniqueIndex:uix_currency_pair"`
	Rate           decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	RecordedAt     time.Time       `gorm:"index;not null"`
}

type Transaction struct {
	gorm.Model
	UserID         uint            `gorm:"index;not null"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Currency       string          `gorm:"size:10;not null"`
	Service        string          `gorm:"size:50;index;not null"` // Western Union, RIA, etc.
	Number         string          `gorm:"uniqueIndex;size:100;not null"`
	Status         string          `gorm:"size:20;index;not null;default:pending"`
	ExchangeRateID *uint           `gorm:"index"`

	ExchangeRate *ExchangeRate `gorm:"foreignKey:ExchangeRateID"`
	Alerts       []Alert       `gorm:"foreignKey:TransactionID"`
}

type Alert struct {
	gorm.Model
	TransactionID uint      `gorm:"index;not null"`
	Reason        string    `gorm:"size:255;not null"`
	RaisedAt      time.Time `gorm:"not null"`
}
