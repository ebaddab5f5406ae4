package usecase

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"yaks/internal/entity"
	"yaks/internal/notify"
	"yaks/internal/repo/persistent"
	"yaks/pkg/logger"
)

type EarningUseCase interface {
	Award(ctx context.Context, userID, actionKey, postID, topicID string) bool
	CanEarn(userID, actionKey string) *entity.CanEarnResult

	ListRules() ([]*entity.EarningRule, error)
	UpdateRule(rule *entity.EarningRule) (*entity.EarningRule, error)
}

type earningUseCase struct {
	enabled   bool
	wallets   persistent.WalletRepository
	rules     persistent.EarningRuleRepository
	content   persistent.ContentRepository
	publisher notify.BalancePublisher
	log       *logger.Logger
	now       func() time.Time
}

func NewEarningUseCase(
	enabled bool,
	wallets persistent.WalletRepository,
	rules persistent.EarningRuleRepository,
	content persistent.ContentRepository,
	publisher notify.BalancePublisher,
	log *logger.Logger,
) EarningUseCase {
	return &earningUseCase{
		enabled:   enabled,
		wallets:   wallets,
		rules:     rules,
		content:   content,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// Award runs the earning pipeline for one platform event. It is called
// from content hooks that must never fail, so every denial and every
// internal error collapses to false.
func (uc *earningUseCase) Award(ctx context.Context, userID, actionKey, postID, topicID string) (awarded bool) {
	defer func() {
		if r := recover(); r != nil {
			uc.log.Error("earning award panicked for user %s action %s: %v", userID, actionKey, r)
			awarded = false
		}
	}()

	if !uc.enabled {
		return false
	}

	rule, err := uc.rules.GetEnabled(actionKey)
	if err != nil {
		if !errors.Is(err, entity.ErrRuleNotFound) {
			uc.log.Error("earning rule lookup failed for %s: %v", actionKey, err)
		}
		return false
	}
	if rule.Amount <= 0 {
		return false
	}

	if reason := uc.checkEligibility(rule, userID, postID, topicID, true); reason != "" {
		uc.log.Info("earning denied for user %s action %s: %s", userID, actionKey, reason)
		return false
	}

	txn, err := uc.wallets.Credit(userID, rule.Amount, entity.TransactionTypeEarn, persistent.TxParams{
		Source:         rule.ActionKey,
		Description:    "Earned from: " + rule.ActionName,
		RelatedPostID:  postID,
		RelatedTopicID: topicID,
	})
	if err != nil {
		uc.log.Error("earning credit failed for user %s action %s: %v", userID, actionKey, err)
		return false
	}

	uc.log.Info("user %s earned %d yaks from %s", userID, txn.Amount, actionKey)

	if uc.publisher != nil {
		if wallet, err := uc.wallets.GetOrCreate(userID); err == nil {
			if err := uc.publisher.PublishBalance(ctx, userID, wallet.Balance); err != nil {
				uc.log.Warn("balance publish failed for user %s: %v", userID, err)
			}
		}
	}
	return true
}

// CanEarn previews eligibility without crediting. The reason is a short
// machine-readable hint for the UI.
func (uc *earningUseCase) CanEarn(userID, actionKey string) *entity.CanEarnResult {
	if !uc.enabled {
		return &entity.CanEarnResult{CanEarn: false, Reason: "disabled"}
	}

	rule, err := uc.rules.GetEnabled(actionKey)
	if err != nil {
		return &entity.CanEarnResult{CanEarn: false, Reason: "no_rule"}
	}

	if reason := uc.checkEligibility(rule, userID, "", "", false); reason != "" {
		return &entity.CanEarnResult{CanEarn: false, Reason: reason}
	}
	return &entity.CanEarnResult{CanEarn: true, Reason: ""}
}

// checkEligibility returns an empty string when the user may earn, or the
// denial reason. When requireContent is set, a rule with a min_length treats
// a missing post or topic as empty content and denies; the CanEarn preview
// has no content in hand and skips the check.
func (uc *earningUseCase) checkEligibility(rule *entity.EarningRule, userID, postID, topicID string, requireContent bool) string {
	user, err := uc.content.GetUser(userID)
	if err != nil {
		return "unknown_user"
	}
	if user.TrustLevel < rule.MinTrustLevel {
		return "trust_level"
	}

	if min := rule.MinLength(); min > 0 && requireContent {
		var raw string
		if postID != "" || topicID != "" {
			raw, err = uc.contentText(postID, topicID)
			if err != nil {
				return "unknown_content"
			}
		}
		if utf8.RuneCountInString(raw) < min {
			return "content_too_short"
		}
	}

	if rule.HasDailyCap() {
		count, err := uc.wallets.CountEarnedSince(userID, rule.ActionKey, startOfDay(uc.now()))
		if err != nil {
			uc.log.Error("daily cap count failed for user %s action %s: %v", userID, rule.ActionKey, err)
			return "cap_check_failed"
		}
		if count >= int64(rule.DailyCap) {
			return "daily_cap"
		}
	}
	return ""
}

func (uc *earningUseCase) contentText(postID, topicID string) (string, error) {
	if postID != "" {
		post, err := uc.content.GetPost(postID)
		if err != nil {
			return "", err
		}
		return post.Raw, nil
	}
	post, err := uc.content.GetFirstPost(topicID)
	if err != nil {
		return "", err
	}
	return post.Raw, nil
}

func (uc *earningUseCase) ListRules() ([]*entity.EarningRule, error) {
	return uc.rules.List()
}

func (uc *earningUseCase) UpdateRule(rule *entity.EarningRule) (*entity.EarningRule, error) {
	return uc.rules.Update(rule)
}

// startOfDay truncates to local midnight; daily caps reset on the server's
// calendar day.
func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
