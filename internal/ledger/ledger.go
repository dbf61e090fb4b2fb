// Package ledger owns coin balances. Every balance change locks the
// account row, appends an immutable LedgerEntry and updates the
// denormalized balance in the same atomic unit, so the balance column
// always equals the sum of the account's entries.
package ledger

import (
	"context"
	"errors"

	"github.com/TEESTIMONY/playmarket-api/internal/apperrors"
	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

// Credit adds coins to an account in its own transaction.
func (s *Service) Credit(ctx context.Context, accountID uint, amount int64, category, ref, desc string) (int64, error) {
	var balance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		balance, err = s.CreditTx(tx, accountID, amount, category, ref, desc)
		return err
	})
	return balance, err
}

// Debit removes coins from an account in its own transaction. Fails with
// INSUFFICIENT_FUNDS if the balance would go negative.
func (s *Service) Debit(ctx context.Context, accountID uint, amount int64, category, ref, desc string) (int64, error) {
	var balance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		balance, err = s.DebitTx(tx, accountID, amount, category, ref, desc)
		return err
	})
	return balance, err
}

// CreditTx credits an account inside a caller-owned transaction. Callers
// holding an auction row lock must acquire it before calling (auction lock
// orders before account lock).
func (s *Service) CreditTx(tx *gorm.DB, accountID uint, amount int64, category, ref, desc string) (int64, error) {
	if amount <= 0 {
		return 0, apperrors.ErrInvalidAmount
	}
	acc, err := LockAccount(tx, accountID)
	if err != nil {
		return 0, err
	}
	return s.apply(tx, acc, amount, category, ref, desc)
}

// DebitTx debits an account inside a caller-owned transaction.
func (s *Service) DebitTx(tx *gorm.DB, accountID uint, amount int64, category, ref, desc string) (int64, error) {
	if amount <= 0 {
		return 0, apperrors.ErrInvalidAmount
	}
	acc, err := LockAccount(tx, accountID)
	if err != nil {
		return 0, err
	}
	if acc.Balance < amount {
		return acc.Balance, apperrors.ErrInsufficientFunds
	}
	return s.apply(tx, acc, -amount, category, ref, desc)
}

// CreditIdempotentTx credits at most once per (account, category, ref).
// A replay returns the current balance with applied=false. Used for
// external transfer webhooks, which deliver at-least-once.
func (s *Service) CreditIdempotentTx(tx *gorm.DB, accountID uint, amount int64, category, ref, desc string) (int64, bool, error) {
	if amount <= 0 {
		return 0, false, apperrors.ErrInvalidAmount
	}
	acc, err := LockAccount(tx, accountID)
	if err != nil {
		return 0, false, err
	}
	// The account row lock serializes this check-then-insert.
	var count int64
	if err := tx.Model(&models.LedgerEntry{}).
		Where("account_id = ? AND category = ? AND reference_id = ?", accountID, category, ref).
		Count(&count).Error; err != nil {
		return 0, false, err
	}
	if count > 0 {
		s.log.Warn("duplicate ledger reference, credit skipped",
			zap.Uint("account_id", accountID),
			zap.String("category", category),
			zap.String("reference_id", ref))
		return acc.Balance, false, nil
	}
	balance, err := s.apply(tx, acc, amount, category, ref, desc)
	return balance, err == nil, err
}

func (s *Service) apply(tx *gorm.DB, acc *models.Account, signed int64, category, ref, desc string) (int64, error) {
	entry := models.LedgerEntry{
		AccountID:   acc.ID,
		Amount:      signed,
		Category:    category,
		ReferenceID: ref,
		Description: desc,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, err
	}
	newBalance := acc.Balance + signed
	if err := tx.Model(&models.Account{}).Where("id = ?", acc.ID).
		Update("balance", newBalance).Error; err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Balance returns the current balance without locking.
func (s *Service) Balance(ctx context.Context, accountID uint) (int64, error) {
	var acc models.Account
	if err := s.db.WithContext(ctx).First(&acc, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.ErrAccountNotFound
		}
		return 0, err
	}
	return acc.Balance, nil
}

// Entries returns the account's most recent ledger entries.
func (s *Service) Entries(ctx context.Context, accountID uint, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []models.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// LockAccount fetches an account under an exclusive row lock.
func LockAccount(tx *gorm.DB, accountID uint) (*models.Account, error) {
	var acc models.Account
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&acc, accountID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, err
	}
	return &acc, nil
}
