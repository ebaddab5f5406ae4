package usecase

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"yaks/internal/entity"
	"yaks/internal/model"
	"yaks/internal/repo/persistent"
	"yaks/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.WalletModel{},
		&model.TransactionModel{},
		&model.FeatureModel{},
		&model.FeatureUseModel{},
		&model.EarningRuleModel{},
		&model.PackageModel{},
		&model.UserModel{},
		&model.PostModel{},
		&model.TopicModel{},
	))

	return db
}

type earningFixture struct {
	db      *gorm.DB
	wallets persistent.WalletRepository
	rules   persistent.EarningRuleRepository
	content persistent.ContentRepository
	earning EarningUseCase
}

func newEarningFixture(t *testing.T, enabled bool) *earningFixture {
	t.Helper()
	db := setupTestDB(t)
	wallets := persistent.NewWalletRepository(db)
	rules := persistent.NewEarningRuleRepository(db)
	content := persistent.NewContentRepository(db)
	return &earningFixture{
		db:      db,
		wallets: wallets,
		rules:   rules,
		content: content,
		earning: NewEarningUseCase(enabled, wallets, rules, content, nil, logger.New()),
	}
}

func (f *earningFixture) seedUser(t *testing.T, id string, trustLevel int) {
	t.Helper()
	require.NoError(t, f.db.Create(&model.UserModel{ID: id, Username: "user_" + id, TrustLevel: trustLevel}).Error)
}

func (f *earningFixture) seedRule(t *testing.T, rule model.EarningRuleModel) {
	t.Helper()
	require.NoError(t, f.db.Create(&rule).Error)
}

func (f *earningFixture) seedPost(t *testing.T, id, raw string) {
	t.Helper()
	require.NoError(t, f.db.Create(&model.PostModel{ID: id, TopicID: "topic-1", UserID: "user-1", Raw: raw}).Error)
}

func postCreatedRule(amount, cap, minTrust, minLength int) model.EarningRuleModel {
	settings := map[string]interface{}{}
	if minLength > 0 {
		settings["min_length"] = minLength
	}
	return model.EarningRuleModel{
		ActionKey:     "post_created",
		ActionName:    "Post Created",
		Amount:        amount,
		DailyCap:      cap,
		MinTrustLevel: minTrust,
		Enabled:       true,
		Settings:      settings,
	}
}

func TestAward_CreditsWithRuleAttribution(t *testing.T) {
	f := newEarningFixture(t, true)
	f.seedUser(t, "user-1", 1)
	f.seedRule(t, postCreatedRule(2, 20, 1, 20))
	f.seedPost(t, "post-1", "this post is long enough to earn")

	awarded := f.earning.Award(context.Background(), "user-1", "post_created", "post-1", "")
	assert.True(t, awarded)

	txns, err := f.wallets.GetTransactions("user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, 2, txns[0].Amount)
	assert.Equal(t, entity.TransactionTypeEarn, txns[0].Type)
	assert.Equal(t, "post_created", txns[0].Source)
	assert.Equal(t, "Earned from: Post Created", txns[0].Description)
	assert.Equal(t, "post-1", txns[0].RelatedPostID)
}

func TestAward_DeniesLowTrustLevel(t *testing.T) {
	f := newEarningFixture(t, true)
	f.seedUser(t, "user-1", 0)
	f.seedRule(t, postCreatedRule(2, 20, 1, 0))

	assert.False(t, f.earning.Award(context.Background(), "user-1", "post_created", "", ""))

	wallet, _ := f.wallets.GetOrCreate("user-1")
	assert.Equal(t, 0, wallet.Balance)
}

func TestAward_DeniesShortContent(t *testing.T) {
	f := newEarningFixture(t, true)
	f.seedUser(t, "user-1", 1)
	f.seedRule(t, postCreatedRule(2, 20, 1, 20))
	f.seedPost(t, "post-1", "too short")

	assert.False(t, f.earning.Award(context.Background(), "user-1", "post_created", "post-1", ""))
}

func TestAward_DeniesMissingContentWhenLengthRequired(t *testing.T) {
	f := newEarningFixture(t, true)
	f.seedUser(t, "user-1", 1)
	f.seedRule(t, postCreatedRule(2, 20, 1, 20))

	// No post or topic supplied: absent content counts as length zero.
	assert.False(t, f.earning.Award(context.Background(), "user-1", "post_created", "", ""))

	wallet, _ := f.wallets.GetOrCreate("user-1")
	assert.Equal(t, 0, wallet.Balance)

	// The preview has no content to measure and stays permissive.
	result := f.earning.CanEarn("user-1", "post_created")
	assert.True(t, result.CanEarn)
}

func TestAward_MinLengthCountsCharactersNotBytes(t *testing.T) {
	f := newEarningFixture(t, true)
	f.seedUser(t, "user-1", 1)
	f.seedRule(t, postCreatedRule(2, 20, 1, 20))

	// 12 characters in 23 bytes; still under the 20-character minimum.
	f.seedPost(t, "post-1", "привет, мир!")
	assert.False(t, f.earning.Award(context.Background(), "user-1", "post_created", "post-1", ""))

	// 20 characters of multibyte text qualifies.
	f.seedPost(t, "post-2", "привет большой мир!!")
	assert.True(t, f.earning.Award(context.Background(), "user-1", "post_created", "post-2", ""))
}

func TestAward_UnknownOrDisabledRule(t *testing.T) {
	f := newEarningFixture(t, true)
	f.seedUser(t, "user-1", 1)

	disabled := postCreatedRule(2, 20, 1, 0)
	disabled.Enabled = false
	f.seedRule(t, disabled)

	assert.False(t, f.earning.Award(context.Background(), "user-1", "post_created", "", ""))
	assert.False(t, f.earning.Award(context.Background(), "user-1", "no_such_action", "", ""))
}

func TestAward_ServiceDisabled(t *testing.T) {
	f := newEarningFixture(t, false)
	f.seedUser(t, "user-1", 1)
	f.seedRule(t, postCreatedRule(2, 20, 1, 0))

	assert.False(t, f.earning.Award(context.Background(), "user-1", "post_created", "", ""))
}

func TestAward_DailyCapStopsAtLimit(t *testing.T) {
	f := newEarningFixture(t, true)
	f.seedUser(t, "user-1", 1)
	f.seedRule(t, postCreatedRule(2, 20, 1, 0))

	awarded := 0
	for i := 0; i < 21; i++ {
		if f.earning.Award(context.Background(), "user-1", "post_created", "", "") {
			awarded++
		}
	}
	assert.Equal(t, 20, awarded)

	wallet, _ := f.wallets.GetOrCreate("user-1")
	assert.Equal(t, 40, wallet.Balance)
}

func TestAward_DailyCapSurvivesRuleRename(t *testing.T) {
	f := newEarningFixture(t, true)
	f.seedUser(t, "user-1", 1)
	f.seedRule(t, postCreatedRule(2, 2, 1, 0))

	assert.True(t, f.earning.Award(context.Background(), "user-1", "post_created", "", ""))
	assert.True(t, f.earning.Award(context.Background(), "user-1", "post_created", "", ""))
	assert.False(t, f.earning.Award(context.Background(), "user-1", "post_created", "", ""))

	// Renaming the display name must not reset the day's count.
	rule, err := f.rules.GetByKey("post_created")
	require.NoError(t, err)
	rule.ActionName = "Post Authored"
	_, err = f.rules.Update(rule)
	require.NoError(t, err)

	assert.False(t, f.earning.Award(context.Background(), "user-1", "post_created", "", ""))
}

func TestAward_CapsAreIndependentPerAction(t *testing.T) {
	f := newEarningFixture(t, true)
	f.seedUser(t, "user-1", 1)
	f.seedRule(t, postCreatedRule(2, 1, 1, 0))
	f.seedRule(t, model.EarningRuleModel{
		ActionKey: "post_liked", ActionName: "Post Liked",
		Amount: 3, DailyCap: 1, MinTrustLevel: 1, Enabled: true,
	})

	assert.True(t, f.earning.Award(context.Background(), "user-1", "post_created", "", ""))
	assert.False(t, f.earning.Award(context.Background(), "user-1", "post_created", "", ""))

	// The other action's cap is untouched.
	assert.True(t, f.earning.Award(context.Background(), "user-1", "post_liked", "", ""))

	wallet, _ := f.wallets.GetOrCreate("user-1")
	assert.Equal(t, 5, wallet.Balance)
}

func TestAward_NeverPanics(t *testing.T) {
	f := newEarningFixture(t, true)
	f.seedUser(t, "user-1", 1)
	f.seedRule(t, postCreatedRule(2, 20, 1, 0))

	// A nil wallet repo makes the credit step blow up; Award must still
	// just report false.
	broken := NewEarningUseCase(true, nil, f.rules, f.content, nil, logger.New())
	assert.NotPanics(t, func() {
		assert.False(t, broken.Award(context.Background(), "user-1", "post_created", "", ""))
	})
}

func TestCanEarn_Reasons(t *testing.T) {
	f := newEarningFixture(t, true)
	f.seedUser(t, "user-1", 1)
	f.seedUser(t, "newbie", 0)
	f.seedRule(t, postCreatedRule(2, 1, 1, 20))

	result := f.earning.CanEarn("user-1", "post_created")
	assert.True(t, result.CanEarn)

	result = f.earning.CanEarn("newbie", "post_created")
	assert.False(t, result.CanEarn)
	assert.Equal(t, "trust_level", result.Reason)

	result = f.earning.CanEarn("user-1", "no_such_action")
	assert.False(t, result.CanEarn)
	assert.Equal(t, "no_rule", result.Reason)

	require.True(t, f.earning.Award(context.Background(), "user-1", "post_created", "", ""))
	result = f.earning.CanEarn("user-1", "post_created")
	assert.False(t, result.CanEarn)
	assert.Equal(t, "daily_cap", result.Reason)
}

func TestCanEarn_Disabled(t *testing.T) {
	f := newEarningFixture(t, false)

	result := f.earning.CanEarn("user-1", "post_created")
	assert.False(t, result.CanEarn)
	assert.Equal(t, "disabled", result.Reason)
}
