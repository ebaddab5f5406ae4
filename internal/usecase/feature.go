package usecase

import (
	"errors"
	"fmt"
	"time"

	"yaks/internal/entity"
	"yaks/internal/repo/persistent"
	"yaks/pkg/logger"
)

// ExpiryScheduler books a one-shot callback for a feature use's expiry
// instant. The sweeper is the backstop when no scheduler is attached or a
// scheduled job is lost across a restart.
type ExpiryScheduler interface {
	ScheduleExpiry(useID string, at time.Time)
}

// SpendRequest is the purchase input after authentication.
type SpendRequest struct {
	UserID      string
	FeatureKey  string
	PostID      string
	TopicID     string
	FeatureData map[string]interface{}
}

type FeatureUseCase interface {
	Spend(req SpendRequest) (*entity.SpendResult, error)
	ExpireUse(useID string) error
	SweepExpired() (int, error)
	SetScheduler(s ExpiryScheduler)

	ListFeatures() ([]*entity.Feature, error)
	CreateFeature(feature *entity.Feature) (*entity.Feature, error)
	UpdateFeature(feature *entity.Feature) (*entity.Feature, error)
}

type featureUseCase struct {
	enabled   bool
	wallets   persistent.WalletRepository
	features  persistent.FeatureRepository
	uses      persistent.FeatureUseRepository
	content   persistent.ContentRepository
	effects   EffectRegistry
	scheduler ExpiryScheduler
	log       *logger.Logger
	now       func() time.Time
}

func NewFeatureUseCase(
	enabled bool,
	wallets persistent.WalletRepository,
	features persistent.FeatureRepository,
	uses persistent.FeatureUseRepository,
	content persistent.ContentRepository,
	effects EffectRegistry,
	log *logger.Logger,
) FeatureUseCase {
	return &featureUseCase{
		enabled:  enabled,
		wallets:  wallets,
		features: features,
		uses:     uses,
		content:  content,
		effects:  effects,
		log:      log,
		now:      time.Now,
	}
}

// SetScheduler attaches the expiry scheduler after construction; the
// scheduler itself depends on this usecase, so the cycle is broken here.
func (uc *featureUseCase) SetScheduler(s ExpiryScheduler) {
	uc.scheduler = s
}

// Spend runs the purchase pipeline: resolve the feature, derive the
// target, debit and record the use atomically, apply effects, schedule
// expiry. An effect failure after the money moved triggers an automatic
// refund.
func (uc *featureUseCase) Spend(req SpendRequest) (*entity.SpendResult, error) {
	if !uc.enabled {
		return nil, entity.ErrYaksDisabled
	}

	feature, err := uc.features.FindEnabled(req.FeatureKey)
	if err != nil {
		return nil, err
	}

	target, err := uc.resolveTarget(feature, req)
	if err != nil {
		return nil, err
	}

	// Advisory check for a friendly error before money moves. The
	// in-transaction check inside CreatePurchase is the authoritative one.
	active, err := uc.uses.HasActiveUse(req.UserID, feature.ID, target)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, entity.ErrAlreadyApplied
	}

	var expiresAt *time.Time
	if d := feature.Duration(); d != nil {
		t := uc.now().Add(*d)
		expiresAt = &t
	}

	use, txn, err := uc.uses.CreatePurchase(req.UserID, feature, target, expiresAt, req.FeatureData)
	if err != nil {
		return nil, err
	}

	if err := uc.effects.Apply(use); err != nil {
		uc.log.Error("effect apply failed for use %s (%s), refunding: %v", use.ID, feature.Key, err)
		// Undo any partial effect, retire the use so it stops counting as
		// active, then give the money back.
		if removeErr := uc.effects.Remove(use); removeErr != nil {
			uc.log.Error("effect cleanup after failed apply also failed for use %s: %v", use.ID, removeErr)
		}
		if _, markErr := uc.uses.MarkProcessed(use.ID); markErr != nil {
			uc.log.Error("could not retire use %s after failed apply: %v", use.ID, markErr)
		}
		if _, refundErr := uc.wallets.Refund(req.UserID, txn.ID, "Refund: could not apply "+feature.Name); refundErr != nil {
			uc.log.Error("refund after failed apply also failed for transaction %s: %v", txn.ID, refundErr)
		}
		return nil, fmt.Errorf("failed to apply %s: %w", feature.Key, err)
	}

	if expiresAt != nil && uc.scheduler != nil {
		uc.scheduler.ScheduleExpiry(use.ID, *expiresAt)
	}

	wallet, err := uc.wallets.GetOrCreate(req.UserID)
	if err != nil {
		return nil, err
	}

	return &entity.SpendResult{
		Success:     true,
		NewBalance:  wallet.Balance,
		FeatureUse:  use,
		Transaction: txn,
	}, nil
}

// resolveTarget validates the target exists and derives the topic from the
// post when only a post is given.
func (uc *featureUseCase) resolveTarget(feature *entity.Feature, req SpendRequest) (persistent.Target, error) {
	switch feature.Category {
	case entity.FeatureCategoryPost:
		if req.PostID == "" {
			return persistent.Target{}, entity.ErrTargetNotFound
		}
		post, err := uc.content.GetPost(req.PostID)
		if err != nil {
			return persistent.Target{}, err
		}
		return persistent.Target{PostID: post.ID, TopicID: post.TopicID}, nil

	case entity.FeatureCategoryTopic:
		topicID := req.TopicID
		if topicID == "" && req.PostID != "" {
			post, err := uc.content.GetPost(req.PostID)
			if err != nil {
				return persistent.Target{}, err
			}
			topicID = post.TopicID
		}
		if topicID == "" {
			return persistent.Target{}, entity.ErrTargetNotFound
		}
		if _, err := uc.content.GetTopic(topicID); err != nil {
			return persistent.Target{}, err
		}
		return persistent.Target{TopicID: topicID}, nil

	default:
		// User-scoped features apply to the buyer; no target needed.
		return persistent.Target{}, nil
	}
}

// ExpireUse moves one use from expired(unprocessed) to processed: remove
// effects, then stamp processed_at exactly once. A use that is still
// active, already processed, or gone is left alone.
func (uc *featureUseCase) ExpireUse(useID string) error {
	use, err := uc.uses.GetByID(useID)
	if err != nil {
		if errors.Is(err, entity.ErrFeatureNotFound) {
			return nil
		}
		return err
	}
	if use.Processed() || use.Active() {
		return nil
	}

	if err := uc.effects.Remove(use); err != nil {
		return fmt.Errorf("failed to remove effects for use %s: %w", useID, err)
	}

	processed, err := uc.uses.MarkProcessed(useID)
	if err != nil {
		return err
	}
	if processed {
		uc.log.Info("feature use %s (%s) expired and processed", useID, use.FeatureKey)
	}
	return nil
}

const sweepBatchSize = 500

// SweepExpired processes every overdue use, isolating per-row failures so
// one stuck removal cannot starve the rest. Returns how many rows were
// handled cleanly.
func (uc *featureUseCase) SweepExpired() (int, error) {
	uses, err := uc.uses.ListExpiredUnprocessed(uc.now(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, use := range uses {
		if err := uc.ExpireUse(use.ID); err != nil {
			uc.log.Error("sweep failed for use %s (%s): %v", use.ID, use.FeatureKey, err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (uc *featureUseCase) ListFeatures() ([]*entity.Feature, error) {
	return uc.features.List()
}

func (uc *featureUseCase) CreateFeature(feature *entity.Feature) (*entity.Feature, error) {
	return uc.features.Create(feature)
}

func (uc *featureUseCase) UpdateFeature(feature *entity.Feature) (*entity.Feature, error) {
	return uc.features.Update(feature)
}
