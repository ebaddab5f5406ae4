package main

import (
	"fmt"

	"yaks/internal/model"
	"yaks/pkg/config"
	"yaks/pkg/database"
	"yaks/pkg/logger"

	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New()
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		panic(err)
	}

	if err := seedFeatures(db, log); err != nil {
		panic(err)
	}
	if err := seedEarningRules(db, log); err != nil {
		panic(err)
	}
	if err := seedPackages(db, log); err != nil {
		panic(err)
	}

	log.Info("Database seeded successfully!")
}

func hours(n int) map[string]interface{} {
	return map[string]interface{}{"duration_hours": n}
}

func seedFeatures(db *gorm.DB, log *logger.Logger) error {
	features := []model.FeatureModel{
		{FeatureKey: "post_highlight", FeatureName: "Highlight Post", Description: "Highlight your post with a colored border for a week", Cost: 10, Category: "post", Enabled: true, Settings: hours(168)},
		{FeatureKey: "post_pin", FeatureName: "Pin Post", Description: "Pin your post to the top of its topic for a day", Cost: 50, Category: "post", Enabled: true, Settings: hours(24)},
		{FeatureKey: "post_boost", FeatureName: "Boost Post", Description: "Boost your post in feeds for three days", Cost: 100, Category: "post", Enabled: true, Settings: hours(72)},
		{FeatureKey: "topic_pin", FeatureName: "Pin Topic", Description: "Pin your topic in its category for a day", Cost: 100, Category: "topic", Enabled: true, Settings: hours(24)},
		{FeatureKey: "topic_boost", FeatureName: "Boost Topic", Description: "Boost your topic in feeds for three days", Cost: 150, Category: "topic", Enabled: true, Settings: hours(72)},
		{FeatureKey: "custom_flair", FeatureName: "Custom Flair", Description: "Wear a custom flair next to your name for a month", Cost: 200, Category: "user", Enabled: true, Settings: hours(720)},
		{FeatureKey: "custom_title", FeatureName: "Custom Title", Description: "Show a custom title on your profile for a month", Cost: 150, Category: "user", Enabled: true, Settings: hours(720)},
	}

	for _, f := range features {
		var existing model.FeatureModel
		if err := db.Where("feature_key = ?", f.FeatureKey).First(&existing).Error; err == nil {
			log.Info("Feature %s already exists, skipping", f.FeatureKey)
			continue
		}
		if err := db.Create(&f).Error; err != nil {
			return fmt.Errorf("failed to seed feature %s: %w", f.FeatureKey, err)
		}
		log.Info("Created feature: %s (%d yaks)", f.FeatureKey, f.Cost)
	}
	return nil
}

func seedEarningRules(db *gorm.DB, log *logger.Logger) error {
	rules := []model.EarningRuleModel{
		{ActionKey: "post_created", ActionName: "Post Created", Description: "Write a post of at least 20 characters", Amount: 2, DailyCap: 20, MinTrustLevel: 1, Enabled: true, Settings: map[string]interface{}{"min_length": 20}},
		{ActionKey: "topic_created", ActionName: "Topic Created", Description: "Start a topic with a first post of at least 50 characters", Amount: 5, DailyCap: 10, MinTrustLevel: 1, Enabled: true, Settings: map[string]interface{}{"min_length": 50}},
		{ActionKey: "post_liked", ActionName: "Post Liked", Description: "Have one of your posts liked", Amount: 3, DailyCap: 30, MinTrustLevel: 1, Enabled: true},
		{ActionKey: "solution_accepted", ActionName: "Solution Accepted", Description: "Have your answer accepted as the solution", Amount: 25, DailyCap: 0, MinTrustLevel: 1, Enabled: true},
	}

	for _, r := range rules {
		var existing model.EarningRuleModel
		if err := db.Where("action_key = ?", r.ActionKey).First(&existing).Error; err == nil {
			log.Info("Earning rule %s already exists, skipping", r.ActionKey)
			continue
		}
		if err := db.Create(&r).Error; err != nil {
			return fmt.Errorf("failed to seed earning rule %s: %w", r.ActionKey, err)
		}
		log.Info("Created earning rule: %s (+%d)", r.ActionKey, r.Amount)
	}
	return nil
}

func seedPackages(db *gorm.DB, log *logger.Logger) error {
	packages := []model.PackageModel{
		{Name: "Starter", Description: "100 yaks to get going", PriceCents: 500, Yaks: 100, Enabled: true, Position: 1},
		{Name: "Value", Description: "200 yaks plus a 25 yak bonus", PriceCents: 1000, Yaks: 200, BonusYaks: 25, Enabled: true, Position: 2},
		{Name: "Premium", Description: "500 yaks plus a 75 yak bonus", PriceCents: 2500, Yaks: 500, BonusYaks: 75, Enabled: true, Position: 3},
		{Name: "Ultimate", Description: "1000 yaks plus a 200 yak bonus", PriceCents: 5000, Yaks: 1000, BonusYaks: 200, Enabled: true, Position: 4},
	}

	for _, p := range packages {
		var existing model.PackageModel
		if err := db.Where("name = ?", p.Name).First(&existing).Error; err == nil {
			log.Info("Package %s already exists, skipping", p.Name)
			continue
		}
		if err := db.Create(&p).Error; err != nil {
			return fmt.Errorf("failed to seed package %s: %w", p.Name, err)
		}
		log.Info("Created package: %s (%d yaks for $%.2f)", p.Name, p.Yaks+p.BonusYaks, float64(p.PriceCents)/100)
	}
	return nil
}
