// Package stock applies stock-affecting business events (produce, sell, purchase, cancel-sale).
// Each event reads, checks and writes inside a single atomic transaction so that a failed
// precondition leaves no persisted change and concurrent events cannot drive stock negative.
package stock

import (
	"context"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bizview/internal/apperr"
	applog "bizview/internal/log"
)

// Kind names a stock event.
type Kind string

const (
	KindProduce    Kind = "produce"
	KindSell       Kind = "sell"
	KindPurchase   Kind = "purchase"
	KindCancelSale Kind = "cancel-sale"
	KindAdjust     Kind = "adjust"

	KindEditMaterial Kind = "edit-material"
)

// RevenueCategorySales is the ledger category written for sale revenues.
const RevenueCategorySales = "sales"

// Atomic runs fn inside one atomic read-modify-write scope. If fn returns an error nothing it
// wrote is persisted.
type Atomic interface {
	RunAtomic(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// GormAtomic implements Atomic with a GORM database transaction.
type GormAtomic struct {
	DB *gorm.DB
}

func (a GormAtomic) RunAtomic(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if a.DB == nil {
		return gorm.ErrInvalidDB
	}
	return a.DB.WithContext(ctx).Transaction(fn)
}

// Service applies stock events for an account.
type Service struct {
	atomic Atomic
	now    func() time.Time
}

// NewService builds a Service running its events in transactions on db.
func NewService(db *gorm.DB) *Service {
	return New(GormAtomic{DB: db})
}

// New builds a Service on top of an arbitrary Atomic implementation.
func New(atomic Atomic) *Service {
	return &Service{atomic: atomic, now: time.Now}
}

func (s *Service) run(ctx context.Context, kind Kind, accountID uint, fn func(tx *gorm.DB) error) error {
	if accountID == 0 {
		return apperr.ErrAuthentication
	}
	err := s.atomic.RunAtomic(ctx, fn)
	if err != nil {
		applog.Debug(ctx, "stock event aborted", "kind", kind, "account", accountID, "error", err)
		return err
	}
	applog.Info(ctx, "stock event committed", "kind", kind, "account", accountID)
	return nil
}

func (s *Service) dateOrNow(value time.Time) time.Time {
	if value.IsZero() {
		return s.now().UTC()
	}
	return value.UTC()
}

func lockForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// roundQuantity trims float noise from multiplied recipe quantities.
func roundQuantity(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func requireID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Validation(field + " is required")
	}
	return nil
}
