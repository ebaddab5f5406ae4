package entity

import "time"

type TransactionType string

const (
	TransactionTypePurchase TransactionType = "purchase"
	TransactionTypeEarn     TransactionType = "earn"
	TransactionTypeSpend    TransactionType = "spend"
	TransactionTypeRefund   TransactionType = "refund"
	TransactionTypeAdmin    TransactionType = "admin"
)

// Wallet holds a user's Yak balance and lifetime totals. Balance is always
// lifetime_earned - lifetime_spent; refunds reduce lifetime_spent.
type Wallet struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Balance        int       `json:"balance"`
	LifetimeEarned int       `json:"lifetime_earned"`
	LifetimeSpent  int       `json:"lifetime_spent"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Transaction is one immutable ledger entry. Amount is signed: positive for
// credits, negative for debits.
type Transaction struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	WalletID       string                 `json:"wallet_id"`
	Amount         int                    `json:"amount"`
	Type           TransactionType        `json:"type"`
	Source         string                 `json:"source,omitempty"`
	Description    string                 `json:"description,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	RelatedPostID  string                 `json:"related_post_id,omitempty"`
	RelatedTopicID string                 `json:"related_topic_id,omitempty"`
	RefundOfID     string                 `json:"refund_of_id,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

func (t *Transaction) Credit() bool {
	return t.Amount > 0
}

func (t *Transaction) Debit() bool {
	return t.Amount < 0
}

// WalletSummary is the payload behind the user-facing wallet page.
type WalletSummary struct {
	Balance        int             `json:"balance"`
	LifetimeEarned int             `json:"lifetime_earned"`
	LifetimeSpent  int             `json:"lifetime_spent"`
	Transactions   []*Transaction  `json:"transactions"`
	Features       []*FeatureOffer `json:"features"`
	Flair          *Flair          `json:"flair,omitempty"`
}

// FeatureOffer is a catalog entry annotated with affordability for one user.
type FeatureOffer struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Cost        int    `json:"cost"`
	Category    string `json:"category"`
	Affordable  bool   `json:"affordable"`
}

// LedgerStats is the admin dashboard aggregate.
type LedgerStats struct {
	TotalWallets       int64          `json:"total_wallets"`
	TotalTransactions  int64          `json:"total_transactions"`
	YaksInCirculation  int64          `json:"total_yaks_in_circulation"`
	TotalYaksEarned    int64          `json:"total_yaks_earned"`
	TotalYaksSpent     int64          `json:"total_yaks_spent"`
	TotalFeatureUses   int64          `json:"total_feature_uses"`
	ActiveFeatureUses  int64          `json:"active_feature_uses"`
	RecentTransactions []*Transaction `json:"recent_transactions"`
}
