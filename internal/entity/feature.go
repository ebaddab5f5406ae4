package entity

import "time"

type FeatureCategory string

const (
	FeatureCategoryPost  FeatureCategory = "post"
	FeatureCategoryTopic FeatureCategory = "topic"
	FeatureCategoryUser  FeatureCategory = "user"
)

// Feature is a purchasable effect users spend Yaks on.
type Feature struct {
	ID          string                 `json:"id"`
	Key         string                 `json:"feature_key"`
	Name        string                 `json:"feature_name"`
	Description string                 `json:"description"`
	Cost        int                    `json:"cost"`
	Category    FeatureCategory        `json:"category,omitempty"`
	Enabled     bool                   `json:"enabled"`
	Settings    map[string]interface{} `json:"settings,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// Duration returns how long the feature stays active once applied, or nil
// for permanent features. duration_hours wins over duration_days.
func (f *Feature) Duration() *time.Duration {
	if hours, ok := settingInt(f.Settings, "duration_hours"); ok {
		d := time.Duration(hours) * time.Hour
		return &d
	}
	if days, ok := settingInt(f.Settings, "duration_days"); ok {
		d := time.Duration(days) * 24 * time.Hour
		return &d
	}
	return nil
}

// FeatureUse records one purchase-and-apply event.
type FeatureUse struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	FeatureID      string                 `json:"feature_id"`
	FeatureKey     string                 `json:"feature_key"`
	TransactionID  string                 `json:"transaction_id"`
	RelatedPostID  string                 `json:"related_post_id,omitempty"`
	RelatedTopicID string                 `json:"related_topic_id,omitempty"`
	ExpiresAt      *time.Time             `json:"expires_at,omitempty"`
	FeatureData    map[string]interface{} `json:"feature_data,omitempty"`
	ProcessedAt    *time.Time             `json:"processed_at,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Active reports whether the use has not yet expired. Uses without an
// expiry are permanent and always active.
func (u *FeatureUse) Active() bool {
	return u.ExpiresAt == nil || u.ExpiresAt.After(time.Now())
}

func (u *FeatureUse) Expired() bool {
	return !u.Active()
}

func (u *FeatureUse) Processed() bool {
	return u.ProcessedAt != nil
}

// SpendResult is returned by the purchase flow.
type SpendResult struct {
	Success     bool         `json:"success"`
	NewBalance  int          `json:"new_balance"`
	FeatureUse  *FeatureUse  `json:"feature_use,omitempty"`
	Transaction *Transaction `json:"-"`
}

// settingInt reads a numeric value out of a settings bag, tolerating the
// int/int64/float64 variants that JSON round-trips produce.
func settingInt(settings map[string]interface{}, key string) (int, bool) {
	if settings == nil {
		return 0, false
	}
	switch n := settings[key].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
