package persistent

import (
	"fmt"
	"testing"

	"yaks/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an isolated in-memory database. One connection only:
// in-memory sqlite gives every new connection its own empty database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = db.AutoMigrate(
		&model.WalletModel{},
		&model.TransactionModel{},
		&model.FeatureModel{},
		&model.FeatureUseModel{},
		&model.EarningRuleModel{},
		&model.PackageModel{},
		&model.UserModel{},
		&model.PostModel{},
		&model.TopicModel{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func seedUser(t *testing.T, db *gorm.DB, id string, trustLevel int) {
	t.Helper()
	user := model.UserModel{ID: id, Username: "user_" + id, TrustLevel: trustLevel}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

func seedTopic(t *testing.T, db *gorm.DB, id, userID string) {
	t.Helper()
	topic := model.TopicModel{ID: id, UserID: userID, Title: "topic " + id}
	if err := db.Create(&topic).Error; err != nil {
		t.Fatalf("failed to seed topic: %v", err)
	}
}

func seedPost(t *testing.T, db *gorm.DB, id, topicID, userID, raw string) {
	t.Helper()
	post := model.PostModel{ID: id, TopicID: topicID, UserID: userID, Raw: raw}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("failed to seed post: %v", err)
	}
}

func seedFeature(t *testing.T, db *gorm.DB, key string, cost int, category string, settings map[string]interface{}) *model.FeatureModel {
	t.Helper()
	feature := model.FeatureModel{
		FeatureKey:  key,
		FeatureName: key,
		Cost:        cost,
		Category:    category,
		Enabled:     true,
		Settings:    settings,
	}
	if err := db.Create(&feature).Error; err != nil {
		t.Fatalf("failed to seed feature: %v", err)
	}
	return &feature
}
