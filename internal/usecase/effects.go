package usecase

import (
	"errors"
	"time"

	"yaks/internal/entity"
	"yaks/internal/repo/persistent"
)

// Effect applies and removes the visible side of one feature key. Remove
// must be idempotent: the sweeper may call it again after a crash that
// removed effects but never stamped processed_at.
type Effect struct {
	Apply  func(use *entity.FeatureUse) error
	Remove func(use *entity.FeatureUse) error
}

// EffectRegistry maps feature keys to their effects. Unknown keys are
// purchases with no visible side (the ledger entry still stands).
type EffectRegistry map[string]Effect

func (r EffectRegistry) Apply(use *entity.FeatureUse) error {
	if effect, ok := r[use.FeatureKey]; ok && effect.Apply != nil {
		return effect.Apply(use)
	}
	return nil
}

func (r EffectRegistry) Remove(use *entity.FeatureUse) error {
	if effect, ok := r[use.FeatureKey]; ok && effect.Remove != nil {
		return effect.Remove(use)
	}
	return nil
}

// DefaultEffects wires the built-in feature keys against the content store.
func DefaultEffects(content persistent.ContentRepository) EffectRegistry {
	return EffectRegistry{
		"post_highlight": {
			Apply: func(use *entity.FeatureUse) error {
				marker := markerValue(use)
				if color, ok := use.FeatureData["color"].(string); ok && color != "" {
					marker["color"] = color
				}
				return content.SetPostMarker(use.RelatedPostID, "highlight", marker)
			},
			Remove: func(use *entity.FeatureUse) error {
				return content.RemovePostMarker(use.RelatedPostID, "highlight")
			},
		},
		"post_pin": {
			Apply: func(use *entity.FeatureUse) error {
				return content.SetPostMarker(use.RelatedPostID, "pinned", markerValue(use))
			},
			Remove: func(use *entity.FeatureUse) error {
				return content.RemovePostMarker(use.RelatedPostID, "pinned")
			},
		},
		"post_boost": {
			Apply: func(use *entity.FeatureUse) error {
				return content.SetPostMarker(use.RelatedPostID, "boosted", markerValue(use))
			},
			Remove: func(use *entity.FeatureUse) error {
				return content.RemovePostMarker(use.RelatedPostID, "boosted")
			},
		},
		"topic_pin": {
			Apply: func(use *entity.FeatureUse) error {
				if err := content.SetTopicMarker(use.RelatedTopicID, "pinned", markerValue(use)); err != nil {
					return err
				}
				global, _ := use.FeatureData["global"].(bool)
				return content.PinTopic(use.RelatedTopicID, use.ExpiresAt, global)
			},
			Remove: func(use *entity.FeatureUse) error {
				if err := content.RemoveTopicMarker(use.RelatedTopicID, "pinned"); err != nil {
					return err
				}
				return content.UnpinTopic(use.RelatedTopicID)
			},
		},
		"topic_boost": {
			Apply: func(use *entity.FeatureUse) error {
				return content.SetTopicMarker(use.RelatedTopicID, "boosted", markerValue(use))
			},
			Remove: func(use *entity.FeatureUse) error {
				return content.RemoveTopicMarker(use.RelatedTopicID, "boosted")
			},
		},
		"custom_flair": {
			Apply: func(use *entity.FeatureUse) error {
				user, err := content.GetUser(use.UserID)
				if err != nil {
					return err
				}
				marker := markerValue(use)
				name, _ := use.FeatureData["name"].(string)
				color, _ := use.FeatureData["color"].(string)
				if bg, ok := use.FeatureData["bg_color"].(string); ok {
					marker["bg_color"] = bg
				}
				marker["name"] = name
				marker["color"] = color
				// The pre-purchase flair comes back when the purchase expires.
				marker["prev_name"] = user.FlairName
				marker["prev_color"] = user.FlairColor
				if err := content.SetUserMarker(use.UserID, "flair", marker); err != nil {
					return err
				}
				return content.UpdateUserFlair(use.UserID, name, color)
			},
			Remove: func(use *entity.FeatureUse) error {
				user, err := content.GetUser(use.UserID)
				if err != nil {
					if errors.Is(err, entity.ErrTargetNotFound) {
						return nil
					}
					return err
				}
				prevName, prevColor, ok := flairFallback(user.CustomFields)
				if err := content.RemoveUserMarker(use.UserID, "flair"); err != nil {
					return err
				}
				// Without a marker there is nothing to restore; leaving the
				// columns alone keeps removal idempotent.
				if !ok {
					return nil
				}
				return content.UpdateUserFlair(use.UserID, prevName, prevColor)
			},
		},
		"custom_title": {
			Apply: func(use *entity.FeatureUse) error {
				marker := markerValue(use)
				if title, ok := use.FeatureData["title"].(string); ok {
					marker["title"] = title
				}
				return content.SetUserMarker(use.UserID, "title", marker)
			},
			Remove: func(use *entity.FeatureUse) error {
				return content.RemoveUserMarker(use.UserID, "title")
			},
		},
	}
}

// flairFallback digs the saved pre-purchase flair out of the user's flair
// marker. ok is false when no marker is present.
func flairFallback(fields map[string]interface{}) (name, color string, ok bool) {
	bag, bagOK := fields["yak_features"].(map[string]interface{})
	if !bagOK {
		return "", "", false
	}
	marker, markerOK := bag["flair"].(map[string]interface{})
	if !markerOK {
		return "", "", false
	}
	name, _ = marker["prev_name"].(string)
	color, _ = marker["prev_color"].(string)
	return name, color, true
}

func markerValue(use *entity.FeatureUse) map[string]interface{} {
	marker := map[string]interface{}{
		"enabled":    true,
		"applied_at": use.CreatedAt.UTC().Format(time.RFC3339),
		"use_id":     use.ID,
	}
	if use.ExpiresAt != nil {
		marker["expires_at"] = use.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return marker
}
