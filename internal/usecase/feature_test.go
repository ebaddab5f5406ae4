package usecase

import (
	"errors"
	"testing"
	"time"

	"yaks/internal/entity"
	"yaks/internal/model"
	"yaks/internal/repo/persistent"
	"yaks/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeScheduler struct {
	scheduled map[string]time.Time
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(map[string]time.Time)}
}

func (s *fakeScheduler) ScheduleExpiry(useID string, at time.Time) {
	s.scheduled[useID] = at
}

type featureFixture struct {
	db        *gorm.DB
	wallets   persistent.WalletRepository
	features  persistent.FeatureRepository
	uses      persistent.FeatureUseRepository
	content   persistent.ContentRepository
	registry  EffectRegistry
	scheduler *fakeScheduler
	usecase   FeatureUseCase
}

func newFeatureFixture(t *testing.T) *featureFixture {
	t.Helper()
	db := setupTestDB(t)
	wallets := persistent.NewWalletRepository(db)
	features := persistent.NewFeatureRepository(db)
	uses := persistent.NewFeatureUseRepository(db)
	content := persistent.NewContentRepository(db)
	registry := DefaultEffects(content)
	uc := NewFeatureUseCase(true, wallets, features, uses, content, registry, logger.New())
	sched := newFakeScheduler()
	uc.SetScheduler(sched)
	return &featureFixture{
		db:        db,
		wallets:   wallets,
		features:  features,
		uses:      uses,
		content:   content,
		registry:  registry,
		scheduler: sched,
		usecase:   uc,
	}
}

func (f *featureFixture) seedFeature(t *testing.T, key string, cost int, category string, settings map[string]interface{}) {
	t.Helper()
	require.NoError(t, f.db.Create(&model.FeatureModel{
		FeatureKey:  key,
		FeatureName: key,
		Cost:        cost,
		Category:    category,
		Enabled:     true,
		Settings:    settings,
	}).Error)
}

func (f *featureFixture) seedContent(t *testing.T) {
	t.Helper()
	require.NoError(t, f.db.Create(&model.UserModel{ID: "user-1", Username: "alice", TrustLevel: 2}).Error)
	require.NoError(t, f.db.Create(&model.TopicModel{ID: "topic-1", UserID: "user-1", Title: "a topic"}).Error)
	require.NoError(t, f.db.Create(&model.PostModel{ID: "post-1", TopicID: "topic-1", UserID: "user-1", Raw: "a post"}).Error)
}

func (f *featureFixture) fund(t *testing.T, userID string, amount int) {
	t.Helper()
	_, err := f.wallets.Credit(userID, amount, entity.TransactionTypePurchase, persistent.TxParams{})
	require.NoError(t, err)
}

func TestSpend_PermanentFeature(t *testing.T) {
	f := newFeatureFixture(t)
	f.seedContent(t)
	f.seedFeature(t, "post_highlight", 25, "post", nil)
	f.fund(t, "user-1", 100)

	result, err := f.usecase.Spend(SpendRequest{
		UserID:      "user-1",
		FeatureKey:  "post_highlight",
		PostID:      "post-1",
		FeatureData: map[string]interface{}{"color": "#ffd700"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 75, result.NewBalance)
	assert.Nil(t, result.FeatureUse.ExpiresAt)

	// No expiry job for a permanent feature.
	assert.Empty(t, f.scheduler.scheduled)

	post, err := f.content.GetPost("post-1")
	require.NoError(t, err)
	bag := post.CustomFields["yak_features"].(map[string]interface{})
	marker := bag["highlight"].(map[string]interface{})
	assert.Equal(t, true, marker["enabled"])
	assert.Equal(t, "#ffd700", marker["color"])
	assert.NotEmpty(t, marker["applied_at"])
}

func TestSpend_TimedFeatureSchedulesExpiry(t *testing.T) {
	f := newFeatureFixture(t)
	f.seedContent(t)
	f.seedFeature(t, "post_pin", 50, "post", map[string]interface{}{"duration_hours": 24})
	f.fund(t, "user-1", 100)

	before := time.Now()
	result, err := f.usecase.Spend(SpendRequest{UserID: "user-1", FeatureKey: "post_pin", PostID: "post-1"})
	require.NoError(t, err)
	require.NotNil(t, result.FeatureUse.ExpiresAt)

	expiresAt := *result.FeatureUse.ExpiresAt
	assert.WithinDuration(t, before.Add(24*time.Hour), expiresAt, time.Minute)

	at, ok := f.scheduler.scheduled[result.FeatureUse.ID]
	require.True(t, ok)
	assert.WithinDuration(t, expiresAt, at, time.Second)
}

func TestSpend_InsufficientBalance(t *testing.T) {
	f := newFeatureFixture(t)
	f.seedContent(t)
	f.seedFeature(t, "post_boost", 100, "post", nil)
	f.fund(t, "user-1", 99)

	_, err := f.usecase.Spend(SpendRequest{UserID: "user-1", FeatureKey: "post_boost", PostID: "post-1"})
	assert.ErrorIs(t, err, entity.ErrInsufficientBalance)

	wallet, _ := f.wallets.GetOrCreate("user-1")
	assert.Equal(t, 99, wallet.Balance)
}

func TestSpend_UnknownFeature(t *testing.T) {
	f := newFeatureFixture(t)
	f.seedContent(t)
	f.fund(t, "user-1", 100)

	_, err := f.usecase.Spend(SpendRequest{UserID: "user-1", FeatureKey: "no_such_feature", PostID: "post-1"})
	assert.ErrorIs(t, err, entity.ErrFeatureNotFound)
}

func TestSpend_ServiceDisabled(t *testing.T) {
	f := newFeatureFixture(t)
	f.seedContent(t)
	f.seedFeature(t, "post_highlight", 25, "post", nil)
	f.fund(t, "user-1", 100)

	disabled := NewFeatureUseCase(false, f.wallets, f.features, f.uses, f.content, f.registry, logger.New())
	_, err := disabled.Spend(SpendRequest{UserID: "user-1", FeatureKey: "post_highlight", PostID: "post-1"})
	assert.ErrorIs(t, err, entity.ErrYaksDisabled)
}

func TestSpend_SecondApplyOnSameTargetFails(t *testing.T) {
	f := newFeatureFixture(t)
	f.seedContent(t)
	f.seedFeature(t, "post_highlight", 25, "post", nil)
	f.fund(t, "user-1", 100)

	_, err := f.usecase.Spend(SpendRequest{UserID: "user-1", FeatureKey: "post_highlight", PostID: "post-1"})
	require.NoError(t, err)

	_, err = f.usecase.Spend(SpendRequest{UserID: "user-1", FeatureKey: "post_highlight", PostID: "post-1"})
	assert.ErrorIs(t, err, entity.ErrAlreadyApplied)

	wallet, _ := f.wallets.GetOrCreate("user-1")
	assert.Equal(t, 75, wallet.Balance)
}

func TestSpend_TopicTargetDerivedFromPost(t *testing.T) {
	f := newFeatureFixture(t)
	f.seedContent(t)
	f.seedFeature(t, "topic_pin", 100, "topic", map[string]interface{}{"duration_hours": 24})
	f.fund(t, "user-1", 100)

	result, err := f.usecase.Spend(SpendRequest{UserID: "user-1", FeatureKey: "topic_pin", PostID: "post-1"})
	require.NoError(t, err)
	assert.Equal(t, "topic-1", result.FeatureUse.RelatedTopicID)

	topic, err := f.content.GetTopic("topic-1")
	require.NoError(t, err)
	require.NotNil(t, topic.PinnedUntil)
	bag := topic.CustomFields["yak_features"].(map[string]interface{})
	assert.Contains(t, bag, "pinned")
}

func TestSpend_MissingTargetFails(t *testing.T) {
	f := newFeatureFixture(t)
	f.seedContent(t)
	f.seedFeature(t, "post_highlight", 25, "post", nil)
	f.fund(t, "user-1", 100)

	_, err := f.usecase.Spend(SpendRequest{UserID: "user-1", FeatureKey: "post_highlight"})
	assert.ErrorIs(t, err, entity.ErrTargetNotFound)

	_, err = f.usecase.Spend(SpendRequest{UserID: "user-1", FeatureKey: "post_highlight", PostID: "gone"})
	assert.ErrorIs(t, err, entity.ErrTargetNotFound)
}

func TestSpend_EffectFailureTriggersRefund(t *testing.T) {
	f := newFeatureFixture(t)
	f.seedContent(t)
	f.seedFeature(t, "cursed_feature", 30, "user", nil)
	f.fund(t, "user-1", 100)

	f.registry["cursed_feature"] = Effect{
		Apply: func(use *entity.FeatureUse) error {
			return errors.New("effect store is down")
		},
	}

	_, err := f.usecase.Spend(SpendRequest{UserID: "user-1", FeatureKey: "cursed_feature"})
	require.Error(t, err)

	wallet, _ := f.wallets.GetOrCreate("user-1")
	assert.Equal(t, 100, wallet.Balance)

	txns, err := f.wallets.GetTransactions("user-1", 10, 0)
	require.NoError(t, err)

	var refunds int
	for _, txn := range txns {
		if txn.Type == entity.TransactionTypeRefund {
			refunds++
		}
	}
	assert.Equal(t, 1, refunds)
}

func TestSpend_RetryAfterFailedApplySucceeds(t *testing.T) {
	f := newFeatureFixture(t)
	f.seedContent(t)
	f.seedFeature(t, "flaky_feature", 30, "user", nil)
	f.fund(t, "user-1", 100)

	calls := 0
	f.registry["flaky_feature"] = Effect{
		Apply: func(use *entity.FeatureUse) error {
			calls++
			if calls == 1 {
				return errors.New("effect store hiccup")
			}
			return nil
		},
	}

	_, err := f.usecase.Spend(SpendRequest{UserID: "user-1", FeatureKey: "flaky_feature"})
	require.Error(t, err)

	wallet, _ := f.wallets.GetOrCreate("user-1")
	assert.Equal(t, 100, wallet.Balance)

	// The refunded use is retired, so the retry is not blocked.
	result, err := f.usecase.Spend(SpendRequest{UserID: "user-1", FeatureKey: "flaky_feature"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 70, result.NewBalance)
}

func TestExpireUse_RemovesEffectsOnce(t *testing.T) {
	f := newFeatureFixture(t)
	f.seedContent(t)
	f.seedFeature(t, "post_pin", 50, "post", map[string]interface{}{"duration_hours": 24})
	f.fund(t, "user-1", 100)

	result, err := f.usecase.Spend(SpendRequest{UserID: "user-1", FeatureKey: "post_pin", PostID: "post-1"})
	require.NoError(t, err)
	useID := result.FeatureUse.ID

	// Not yet expired: nothing happens.
	require.NoError(t, f.usecase.ExpireUse(useID))
	post, _ := f.content.GetPost("post-1")
	assert.Contains(t, post.CustomFields["yak_features"].(map[string]interface{}), "pinned")

	// Push the expiry into the past and run the task.
	past := time.Now().Add(-time.Minute)
	require.NoError(t, f.db.Model(&model.FeatureUseModel{}).Where("id = ?", useID).Update("expires_at", past).Error)

	require.NoError(t, f.usecase.ExpireUse(useID))

	post, _ = f.content.GetPost("post-1")
	assert.NotContains(t, post.CustomFields, "yak_features")

	use, err := f.uses.GetByID(useID)
	require.NoError(t, err)
	assert.True(t, use.Processed())

	// Running it again is a no-op.
	require.NoError(t, f.usecase.ExpireUse(useID))
}

func TestExpireUse_AllowsRepurchaseAfterwards(t *testing.T) {
	f := newFeatureFixture(t)
	f.seedContent(t)
	f.seedFeature(t, "post_pin", 50, "post", map[string]interface{}{"duration_hours": 24})
	f.fund(t, "user-1", 200)

	result, err := f.usecase.Spend(SpendRequest{UserID: "user-1", FeatureKey: "post_pin", PostID: "post-1"})
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, f.db.Model(&model.FeatureUseModel{}).Where("id = ?", result.FeatureUse.ID).Update("expires_at", past).Error)
	require.NoError(t, f.usecase.ExpireUse(result.FeatureUse.ID))

	second, err := f.usecase.Spend(SpendRequest{UserID: "user-1", FeatureKey: "post_pin", PostID: "post-1"})
	require.NoError(t, err)
	assert.Equal(t, 100, second.NewBalance)
}

func TestSweepExpired_IsolatesFailures(t *testing.T) {
	f := newFeatureFixture(t)
	f.seedContent(t)
	require.NoError(t, f.db.Create(&model.PostModel{ID: "post-2", TopicID: "topic-1", UserID: "user-1", Raw: "other"}).Error)
	f.seedFeature(t, "post_pin", 50, "post", map[string]interface{}{"duration_hours": 24})
	f.seedFeature(t, "broken_feature", 10, "post", map[string]interface{}{"duration_hours": 24})
	f.fund(t, "user-1", 200)

	f.registry["broken_feature"] = Effect{
		Remove: func(use *entity.FeatureUse) error {
			return errors.New("removal keeps failing")
		},
	}

	good, err := f.usecase.Spend(SpendRequest{UserID: "user-1", FeatureKey: "post_pin", PostID: "post-1"})
	require.NoError(t, err)
	bad, err := f.usecase.Spend(SpendRequest{UserID: "user-1", FeatureKey: "broken_feature", PostID: "post-2"})
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	for _, id := range []string{good.FeatureUse.ID, bad.FeatureUse.ID} {
		require.NoError(t, f.db.Model(&model.FeatureUseModel{}).Where("id = ?", id).Update("expires_at", past).Error)
	}

	processed, err := f.usecase.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	goodUse, err := f.uses.GetByID(good.FeatureUse.ID)
	require.NoError(t, err)
	assert.True(t, goodUse.Processed())

	badUse, err := f.uses.GetByID(bad.FeatureUse.ID)
	require.NoError(t, err)
	assert.False(t, badUse.Processed())
}

func TestCustomFlairEffect_UpdatesProfile(t *testing.T) {
	f := newFeatureFixture(t)
	f.seedContent(t)
	f.seedFeature(t, "custom_flair", 200, "user", map[string]interface{}{"duration_hours": 720})
	f.fund(t, "user-1", 200)

	_, err := f.usecase.Spend(SpendRequest{
		UserID:      "user-1",
		FeatureKey:  "custom_flair",
		FeatureData: map[string]interface{}{"name": "Champion", "color": "#gold"},
	})
	require.NoError(t, err)

	user, err := f.content.GetUser("user-1")
	require.NoError(t, err)
	assert.Equal(t, "Champion", user.FlairName)
	assert.Equal(t, "#gold", user.FlairColor)
}

func TestCustomFlairEffect_RestoresFallbackOnExpiry(t *testing.T) {
	f := newFeatureFixture(t)
	f.seedContent(t)
	f.seedFeature(t, "custom_flair", 200, "user", map[string]interface{}{"duration_hours": 720})
	f.fund(t, "user-1", 200)

	require.NoError(t, f.content.UpdateUserFlair("user-1", "Regular", "#ccc"))

	result, err := f.usecase.Spend(SpendRequest{
		UserID:      "user-1",
		FeatureKey:  "custom_flair",
		FeatureData: map[string]interface{}{"name": "Champion", "color": "#gold"},
	})
	require.NoError(t, err)

	user, err := f.content.GetUser("user-1")
	require.NoError(t, err)
	assert.Equal(t, "Champion", user.FlairName)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, f.db.Model(&model.FeatureUseModel{}).Where("id = ?", result.FeatureUse.ID).Update("expires_at", past).Error)
	require.NoError(t, f.usecase.ExpireUse(result.FeatureUse.ID))

	// The pre-purchase flair is back, not wiped.
	user, err = f.content.GetUser("user-1")
	require.NoError(t, err)
	assert.Equal(t, "Regular", user.FlairName)
	assert.Equal(t, "#ccc", user.FlairColor)

	flair, err := resolveDisplayFlair(f, "user-1")
	require.NoError(t, err)
	require.NotNil(t, flair)
	assert.Equal(t, "default", flair.Source)
	assert.Equal(t, "Regular", flair.Name)
}

// resolveDisplayFlair resolves the flair the wallet page would show.
func resolveDisplayFlair(f *featureFixture, userID string) (*entity.Flair, error) {
	ledger := NewLedgerUseCase(f.wallets, persistent.NewFeatureRepository(f.db), f.uses, persistent.NewPackageRepository(f.db), f.content, nil, 20, logger.New())
	return ledger.ResolveFlair(userID)
}
