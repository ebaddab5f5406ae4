package persistent

import (
	"errors"
	"fmt"
	"time"

	"yaks/internal/entity"
	"yaks/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TxParams carries the audit fields attached to a ledger entry.
type TxParams struct {
	Source         string
	Description    string
	Metadata       map[string]interface{}
	RelatedPostID  string
	RelatedTopicID string
}

// TransactionFilter narrows the admin transaction listing.
type TransactionFilter struct {
	UserID string
	Type   string
	Limit  int
}

type WalletRepository interface {
	GetOrCreate(userID string) (*entity.Wallet, error)
	Credit(userID string, amount int, txType entity.TransactionType, p TxParams) (*entity.Transaction, error)
	Debit(userID string, amount int, featureKey, description string, p TxParams) (*entity.Transaction, error)
	Refund(userID, transactionID, reason string) (*entity.Transaction, error)
	GetTransactions(userID string, limit, offset int) ([]*entity.Transaction, error)
	ListTransactions(filter TransactionFilter) ([]*entity.Transaction, error)
	CountEarnedSince(userID, actionKey string, since time.Time) (int64, error)
	Stats(recentLimit int) (*entity.LedgerStats, error)
}

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) GetOrCreate(userID string) (*entity.Wallet, error) {
	var wallet *model.WalletModel
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var err error
		wallet, err = getOrCreateWallet(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toWalletEntity(wallet), nil
}

// Credit adds yaks to the wallet and appends the matching ledger entry in
// one database transaction.
func (r *walletRepository) Credit(userID string, amount int, txType entity.TransactionType, p TxParams) (*entity.Transaction, error) {
	if amount <= 0 {
		return nil, entity.ErrInvalidAmount
	}

	var created *model.TransactionModel
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = creditWallet(tx, userID, amount, txType, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toTransactionEntity(created), nil
}

// Debit spends yaks on a feature. The guarded UPDATE both enforces the
// non-negative balance invariant and takes the wallet row lock for the
// rest of the transaction.
func (r *walletRepository) Debit(userID string, amount int, featureKey, description string, p TxParams) (*entity.Transaction, error) {
	if amount <= 0 {
		return nil, entity.ErrInvalidAmount
	}

	var created *model.TransactionModel
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = debitWallet(tx, userID, amount, featureKey, description, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toTransactionEntity(created), nil
}

// Refund reverses a previous spend. The unique index on refund_of_id makes
// refunding the same transaction twice fail atomically.
func (r *walletRepository) Refund(userID, transactionID, reason string) (*entity.Transaction, error) {
	var created *model.TransactionModel
	err := r.db.Transaction(func(tx *gorm.DB) error {
		wallet, err := getOrCreateWallet(tx, userID)
		if err != nil {
			return err
		}

		var original model.TransactionModel
		if err := tx.First(&original, "id = ?", transactionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return entity.ErrNotOwner
			}
			return fmt.Errorf("failed to load transaction: %w", err)
		}

		if original.WalletID != wallet.ID {
			return entity.ErrNotOwner
		}
		if original.Amount >= 0 {
			return entity.ErrNotRefundable
		}

		refundAmount := -original.Amount
		refund := model.TransactionModel{
			UserID:      userID,
			WalletID:    wallet.ID,
			Amount:      refundAmount,
			Type:        string(entity.TransactionTypeRefund),
			Source:      "refund_" + original.ID,
			Description: reason,
			Metadata:    map[string]interface{}{"original_transaction_id": original.ID},
			RefundOfID:  &original.ID,
		}
		if err := tx.Create(&refund).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return entity.ErrAlreadyRefunded
			}
			return fmt.Errorf("failed to create refund transaction: %w", err)
		}

		updates := map[string]interface{}{
			"balance":        gorm.Expr("balance + ?", refundAmount),
			"lifetime_spent": gorm.Expr("lifetime_spent - ?", refundAmount),
		}
		if err := tx.Model(&model.WalletModel{}).Where("id = ?", wallet.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to restore balance: %w", err)
		}

		if err := syncUserBalance(tx, userID, wallet.ID); err != nil {
			return err
		}

		created = &refund
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toTransactionEntity(created), nil
}

func (r *walletRepository) GetTransactions(userID string, limit, offset int) ([]*entity.Transaction, error) {
	var rows []model.TransactionModel
	query := r.db.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	transactions := make([]*entity.Transaction, len(rows))
	for i := range rows {
		transactions[i] = toTransactionEntity(&rows[i])
	}
	return transactions, nil
}

func (r *walletRepository) ListTransactions(filter TransactionFilter) ([]*entity.Transaction, error) {
	query := r.db.Order("created_at DESC")
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Type != "" {
		query = query.Where("transaction_type = ?", filter.Type)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var rows []model.TransactionModel
	if err := query.Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	transactions := make([]*entity.Transaction, len(rows))
	for i := range rows {
		transactions[i] = toTransactionEntity(&rows[i])
	}
	return transactions, nil
}

// CountEarnedSince counts earn entries attributed to an earning rule by its
// stable action key, not by the rule's display name.
func (r *walletRepository) CountEarnedSince(userID, actionKey string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.TransactionModel{}).
		Where("user_id = ?", userID).
		Where("transaction_type = ?", string(entity.TransactionTypeEarn)).
		Where("source = ?", actionKey).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

func (r *walletRepository) Stats(recentLimit int) (*entity.LedgerStats, error) {
	stats := &entity.LedgerStats{}

	if err := r.db.Model(&model.WalletModel{}).Count(&stats.TotalWallets).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&model.TransactionModel{}).Count(&stats.TotalTransactions).Error; err != nil {
		return nil, err
	}

	type totals struct {
		Balance int64
		Earned  int64
		Spent   int64
	}
	var t totals
	err := r.db.Model(&model.WalletModel{}).
		Select("COALESCE(SUM(balance), 0) AS balance, COALESCE(SUM(lifetime_earned), 0) AS earned, COALESCE(SUM(lifetime_spent), 0) AS spent").
		Scan(&t).Error
	if err != nil {
		return nil, err
	}
	stats.YaksInCirculation = t.Balance
	stats.TotalYaksEarned = t.Earned
	stats.TotalYaksSpent = t.Spent

	if err := r.db.Model(&model.FeatureUseModel{}).Count(&stats.TotalFeatureUses).Error; err != nil {
		return nil, err
	}
	err = r.db.Model(&model.FeatureUseModel{}).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Count(&stats.ActiveFeatureUses).Error
	if err != nil {
		return nil, err
	}

	if recentLimit > 0 {
		recent, err := r.ListTransactions(TransactionFilter{Limit: recentLimit})
		if err != nil {
			return nil, err
		}
		stats.RecentTransactions = recent
	}

	return stats, nil
}

// getOrCreateWallet is race-safe: concurrent creators converge on the one
// row behind the user_id unique index.
func getOrCreateWallet(tx *gorm.DB, userID string) (*model.WalletModel, error) {
	var wallet model.WalletModel
	err := tx.Where("user_id = ?", userID).First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}

	wallet = model.WalletModel{ID: uuid.New().String(), UserID: userID}
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&wallet).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	if err := tx.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, fmt.Errorf("failed to load wallet after create: %w", err)
	}
	return &wallet, nil
}

func creditWallet(tx *gorm.DB, userID string, amount int, txType entity.TransactionType, p TxParams) (*model.TransactionModel, error) {
	wallet, err := getOrCreateWallet(tx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"balance":         gorm.Expr("balance + ?", amount),
		"lifetime_earned": gorm.Expr("lifetime_earned + ?", amount),
	}
	if err := tx.Model(&model.WalletModel{}).Where("id = ?", wallet.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to credit wallet: %w", err)
	}

	created := model.TransactionModel{
		UserID:         userID,
		WalletID:       wallet.ID,
		Amount:         amount,
		Type:           string(txType),
		Source:         p.Source,
		Description:    p.Description,
		Metadata:       p.Metadata,
		RelatedPostID:  strPtr(p.RelatedPostID),
		RelatedTopicID: strPtr(p.RelatedTopicID),
	}
	if err := tx.Create(&created).Error; err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	return &created, syncUserBalance(tx, userID, wallet.ID)
}

func debitWallet(tx *gorm.DB, userID string, amount int, featureKey, description string, p TxParams) (*model.TransactionModel, error) {
	wallet, err := getOrCreateWallet(tx, userID)
	if err != nil {
		return nil, err
	}

	res := tx.Model(&model.WalletModel{}).
		Where("id = ? AND balance >= ?", wallet.ID, amount).
		Updates(map[string]interface{}{
			"balance":        gorm.Expr("balance - ?", amount),
			"lifetime_spent": gorm.Expr("lifetime_spent + ?", amount),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to debit wallet: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, entity.ErrInsufficientBalance
	}

	created := model.TransactionModel{
		UserID:         userID,
		WalletID:       wallet.ID,
		Amount:         -amount,
		Type:           string(entity.TransactionTypeSpend),
		Source:         "feature_" + featureKey,
		Description:    description,
		Metadata:       p.Metadata,
		RelatedPostID:  strPtr(p.RelatedPostID),
		RelatedTopicID: strPtr(p.RelatedTopicID),
	}
	if err := tx.Create(&created).Error; err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	return &created, syncUserBalance(tx, userID, wallet.ID)
}

// syncUserBalance keeps the denormalized users.yak_balance cache equal to
// the wallet balance. The user row may live in another service's care, so
// zero rows affected is not an error.
func syncUserBalance(tx *gorm.DB, userID, walletID string) error {
	var balance int
	err := tx.Model(&model.WalletModel{}).Select("balance").Where("id = ?", walletID).Scan(&balance).Error
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}

	err = tx.Model(&model.UserModel{}).Where("id = ?", userID).Update("yak_balance", balance).Error
	if err != nil {
		return fmt.Errorf("failed to sync cached balance: %w", err)
	}
	return nil
}
