package transfer

import (
	"context"
	"strings"

	"github.com/TEESTIMONY/playmarket-api/internal/apperrors"
	"github.com/TEESTIMONY/playmarket-api/internal/ledger"
	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service initiates provider transfers and records their outcomes.
type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	ledger *ledger.Service
	client *Client
}

func NewService(db *gorm.DB, log *zap.Logger, lgr *ledger.Service, client *Client) *Service {
	return &Service{db: db, log: log, ledger: lgr, client: client}
}

// knownProviderErrors are the provider codes surfaced to clients as-is.
var knownProviderErrors = map[string]struct{}{
	"INSUFFICIENT_BALANCE": {},
	"USER_NOT_FOUND":       {},
	"INVALID_AMOUNT":       {},
	"TRANSFER_FAILED":      {},
}

func normalizeProviderError(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if _, ok := knownProviderErrors[code]; ok {
		return code
	}
	return "TRANSFER_FAILED"
}

// Initiate runs one transfer for the account: call the provider, record
// the outcome, and on success credit the local ledger keyed by the
// transfer id so a replay cannot double-apply.
func (s *Service) Initiate(ctx context.Context, accountID uint, email string, amount int64) (*models.PointTransfer, error) {
	if !s.client.Configured() {
		return nil, apperrors.ErrTransferNotConfigured
	}
	if amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, &apperrors.Error{Kind: apperrors.KindValidation, Code: "EMAIL_NOT_AVAILABLE", Message: "account has no email"}
	}

	transferID := uuid.NewString()
	record := models.PointTransfer{
		UserID:     accountID,
		Email:      email,
		Amount:     amount,
		TransferID: transferID,
	}

	provider, err := s.client.Transfer(ctx, email, amount, transferID)
	if err != nil {
		s.log.Error("transfer provider unreachable",
			zap.String("transfer_id", transferID), zap.Error(err))
		record.Status = models.TransferFailed
		record.ProviderError = apperrors.ErrTransferUnavailable.Code
		if dbErr := s.db.WithContext(ctx).Create(&record).Error; dbErr != nil {
			s.log.Error("failed to record transfer outcome", zap.Error(dbErr))
		}
		return &record, apperrors.ErrTransferUnavailable
	}

	if !provider.Success {
		code := normalizeProviderError(provider.Error)
		record.Status = models.TransferFailed
		record.ProviderError = code
		if dbErr := s.db.WithContext(ctx).Create(&record).Error; dbErr != nil {
			s.log.Error("failed to record transfer outcome", zap.Error(dbErr))
		}
		return &record, apperrors.Domain(code, "transfer rejected by provider")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, _, err := s.ledger.CreditIdempotentTx(tx, accountID, amount,
			models.CategoryExternalTransfer, transferID, "PlayEngine transfer "+transferID)
		if err != nil {
			return err
		}
		record.Status = models.TransferSuccess
		record.CreditedBalance = balance
		return tx.Create(&record).Error
	})
	if err != nil {
		// The provider already moved the points. Keep the idempotency
		// token in the log so the credit can be reconciled by hand.
		s.log.Error("provider transfer succeeded but local credit failed",
			zap.String("transfer_id", transferID),
			zap.Uint("account_id", accountID),
			zap.Int64("amount", amount),
			zap.Error(err))
		return nil, err
	}

	s.log.Info("transfer credited",
		zap.Uint("account_id", accountID),
		zap.Int64("amount", amount),
		zap.String("transfer_id", transferID))
	return &record, nil
}

// List returns the account's most recent transfers.
func (s *Service) List(ctx context.Context, accountID uint, limit int) ([]models.PointTransfer, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var transfers []models.PointTransfer
	err := s.db.WithContext(ctx).
		Where("user_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&transfers).Error
	return transfers, err
}
