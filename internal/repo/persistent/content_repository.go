package persistent

import (
	"errors"
	"fmt"
	"time"

	"yaks/internal/entity"
	"yaks/internal/model"

	"gorm.io/gorm"
)

// markerBag is the custom-fields sub-key that holds every marker this
// service writes, keeping them apart from fields other plugins own.
const markerBag = "yak_features"

const markerRetries = 3

type ContentRepository interface {
	GetPost(id string) (*entity.Post, error)
	GetTopic(id string) (*entity.Topic, error)
	GetFirstPost(topicID string) (*entity.Post, error)
	GetUser(id string) (*entity.User, error)

	SetPostMarker(postID, key string, value interface{}) error
	RemovePostMarker(postID, key string) error
	SetTopicMarker(topicID, key string, value interface{}) error
	RemoveTopicMarker(topicID, key string) error
	SetUserMarker(userID, key string, value interface{}) error
	RemoveUserMarker(userID, key string) error

	PinTopic(topicID string, until *time.Time, global bool) error
	UnpinTopic(topicID string) error
	UpdateUserFlair(userID, name, color string) error
}

type contentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) GetPost(id string) (*entity.Post, error) {
	var m model.PostModel
	if err := r.db.First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrTargetNotFound
		}
		return nil, err
	}
	return toPostEntity(&m), nil
}

func (r *contentRepository) GetTopic(id string) (*entity.Topic, error) {
	var m model.TopicModel
	if err := r.db.First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrTargetNotFound
		}
		return nil, err
	}
	return toTopicEntity(&m), nil
}

func (r *contentRepository) GetFirstPost(topicID string) (*entity.Post, error) {
	var m model.PostModel
	err := r.db.Where("topic_id = ?", topicID).Order("created_at").First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrTargetNotFound
		}
		return nil, err
	}
	return toPostEntity(&m), nil
}

func (r *contentRepository) GetUser(id string) (*entity.User, error) {
	var m model.UserModel
	if err := r.db.First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrTargetNotFound
		}
		return nil, err
	}
	return toUserEntity(&m), nil
}

func (r *contentRepository) SetPostMarker(postID, key string, value interface{}) error {
	return r.mutatePostFields(postID, true, func(fields map[string]interface{}) bool {
		return setMarker(fields, key, value)
	})
}

func (r *contentRepository) RemovePostMarker(postID, key string) error {
	return r.mutatePostFields(postID, false, func(fields map[string]interface{}) bool {
		return removeMarker(fields, key)
	})
}

func (r *contentRepository) SetTopicMarker(topicID, key string, value interface{}) error {
	return r.mutateTopicFields(topicID, true, func(fields map[string]interface{}) bool {
		return setMarker(fields, key, value)
	})
}

func (r *contentRepository) RemoveTopicMarker(topicID, key string) error {
	return r.mutateTopicFields(topicID, false, func(fields map[string]interface{}) bool {
		return removeMarker(fields, key)
	})
}

func (r *contentRepository) SetUserMarker(userID, key string, value interface{}) error {
	return r.mutateUserFields(userID, true, func(fields map[string]interface{}) bool {
		return setMarker(fields, key, value)
	})
}

func (r *contentRepository) RemoveUserMarker(userID, key string) error {
	return r.mutateUserFields(userID, false, func(fields map[string]interface{}) bool {
		return removeMarker(fields, key)
	})
}

func (r *contentRepository) PinTopic(topicID string, until *time.Time, global bool) error {
	res := r.db.Model(&model.TopicModel{}).Where("id = ?", topicID).Updates(map[string]interface{}{
		"pinned_until":    until,
		"pinned_globally": global,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return entity.ErrTargetNotFound
	}
	return nil
}

// UnpinTopic is idempotent: a topic that was already unpinned, or deleted
// since purchase, is left as is.
func (r *contentRepository) UnpinTopic(topicID string) error {
	return r.db.Model(&model.TopicModel{}).Where("id = ?", topicID).Updates(map[string]interface{}{
		"pinned_until":    nil,
		"pinned_globally": false,
	}).Error
}

func (r *contentRepository) UpdateUserFlair(userID, name, color string) error {
	return r.db.Model(&model.UserModel{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"flair_name":  name,
		"flair_color": color,
	}).Error
}

// mutatePostFields applies a read-modify-write to the custom-fields bag
// under an updated_at guard, retrying on concurrent writers. A missing row
// fails a set but is a no-op for a remove.
func (r *contentRepository) mutatePostFields(id string, required bool, mutate func(map[string]interface{}) bool) error {
	for attempt := 0; attempt < markerRetries; attempt++ {
		var m model.PostModel
		if err := r.db.First(&m, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if required {
					return entity.ErrTargetNotFound
				}
				return nil
			}
			return err
		}

		fields := cloneFields(m.CustomFields)
		if !mutate(fields) {
			return nil
		}

		res := r.db.Model(&model.PostModel{}).
			Where("id = ? AND updated_at = ?", id, m.UpdatedAt).
			Select("custom_fields").
			Updates(&model.PostModel{CustomFields: fields})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
	}
	return fmt.Errorf("post %s: custom fields kept changing", id)
}

func (r *contentRepository) mutateTopicFields(id string, required bool, mutate func(map[string]interface{}) bool) error {
	for attempt := 0; attempt < markerRetries; attempt++ {
		var m model.TopicModel
		if err := r.db.First(&m, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if required {
					return entity.ErrTargetNotFound
				}
				return nil
			}
			return err
		}

		fields := cloneFields(m.CustomFields)
		if !mutate(fields) {
			return nil
		}

		res := r.db.Model(&model.TopicModel{}).
			Where("id = ? AND updated_at = ?", id, m.UpdatedAt).
			Select("custom_fields").
			Updates(&model.TopicModel{CustomFields: fields})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
	}
	return fmt.Errorf("topic %s: custom fields kept changing", id)
}

func (r *contentRepository) mutateUserFields(id string, required bool, mutate func(map[string]interface{}) bool) error {
	for attempt := 0; attempt < markerRetries; attempt++ {
		var m model.UserModel
		if err := r.db.First(&m, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if required {
					return entity.ErrTargetNotFound
				}
				return nil
			}
			return err
		}

		fields := cloneFields(m.CustomFields)
		if !mutate(fields) {
			return nil
		}

		res := r.db.Model(&model.UserModel{}).
			Where("id = ? AND updated_at = ?", id, m.UpdatedAt).
			Select("custom_fields").
			Updates(&model.UserModel{CustomFields: fields})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
	}
	return fmt.Errorf("user %s: custom fields kept changing", id)
}

func cloneFields(fields map[string]interface{}) map[string]interface{} {
	cloned := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		cloned[k] = v
	}
	return cloned
}

func setMarker(fields map[string]interface{}, key string, value interface{}) bool {
	bag := markerMap(fields)
	bag[key] = value
	fields[markerBag] = bag
	return true
}

func removeMarker(fields map[string]interface{}, key string) bool {
	bag := markerMap(fields)
	if _, ok := bag[key]; !ok {
		return false
	}
	delete(bag, key)
	if len(bag) == 0 {
		delete(fields, markerBag)
	} else {
		fields[markerBag] = bag
	}
	return true
}

// markerMap tolerates both in-process maps and the generic maps a JSON
// round trip produces.
func markerMap(fields map[string]interface{}) map[string]interface{} {
	bag := make(map[string]interface{})
	if raw, ok := fields[markerBag].(map[string]interface{}); ok {
		for k, v := range raw {
			bag[k] = v
		}
	}
	return bag
}
