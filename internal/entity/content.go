package entity

import "time"

// Post, Topic and User mirror the slice of the platform's content store the
// yaks core consumes: raw text for earning checks, the custom-fields bag
// feature effects live in, and the topic pin state.

type Post struct {
	ID           string                 `json:"id"`
	TopicID      string                 `json:"topic_id"`
	UserID       string                 `json:"user_id"`
	Raw          string                 `json:"raw"`
	CustomFields map[string]interface{} `json:"custom_fields,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

type Topic struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	Title          string                 `json:"title"`
	PinnedUntil    *time.Time             `json:"pinned_until,omitempty"`
	PinnedGlobally bool                   `json:"pinned_globally"`
	CustomFields   map[string]interface{} `json:"custom_fields,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

type User struct {
	ID           string                 `json:"id"`
	Username     string                 `json:"username"`
	TrustLevel   int                    `json:"trust_level"`
	YakBalance   int                    `json:"yak_balance"`
	FlairName    string                 `json:"flair_name,omitempty"`
	FlairColor   string                 `json:"flair_color,omitempty"`
	CustomFields map[string]interface{} `json:"custom_fields,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Flair is the resolved display flair for a user: either an active
// custom_flair purchase or the fallback stored on the user record.
type Flair struct {
	Name    string `json:"name"`
	Color   string `json:"color"`
	BGColor string `json:"bg_color,omitempty"`
	Source  string `json:"source"` // "yak" or "default"
}
