package entity

import "time"

// EarningRule defines how many Yaks an action awards and under what limits.
type EarningRule struct {
	ID            string                 `json:"id"`
	ActionKey     string                 `json:"action_key"`
	ActionName    string                 `json:"action_name"`
	Description   string                 `json:"description"`
	Amount        int                    `json:"amount"`
	DailyCap      int                    `json:"daily_cap"` // 0 = unlimited
	MinTrustLevel int                    `json:"min_trust_level"`
	Enabled       bool                   `json:"enabled"`
	Settings      map[string]interface{} `json:"settings,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

func (r *EarningRule) HasDailyCap() bool {
	return r.DailyCap > 0
}

// MinLength returns the minimum content length required to earn, 0 if none.
func (r *EarningRule) MinLength() int {
	n, _ := settingInt(r.Settings, "min_length")
	return n
}

// CanEarnResult is the read-only preview used for UI hints.
type CanEarnResult struct {
	CanEarn bool   `json:"can_earn"`
	Reason  string `json:"reason"`
}
