package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/rowanhall/hearth/internal/kv"
	"github.com/rowanhall/hearth/internal/model"
)

// Redeem charges a reward against a kid's star balance and records the
// redemption with the cost snapshotted as of now.
//
// The affordability check and the append are one CAS cycle on the
// redemptions document: if another redemption lands in between, the
// version stamp moves, the Put fails, and the whole check reruns against
// fresh data. Two near-simultaneous redemptions therefore serialize
// instead of both reading the same stale balance.
func (l *Ledger) Redeem(ctx context.Context, kidID, rewardID string) (model.Redemption, error) {
	kid, err := l.getKid(ctx, kidID)
	if err != nil {
		return model.Redemption{}, err
	}
	reward, err := l.getReward(ctx, rewardID)
	if err != nil {
		return model.Redemption{}, err
	}

	if reward.Archived || !reward.EligibleFor(kidID) {
		return model.Redemption{}, fmt.Errorf("reward %s for kid %s: %w", rewardID, kidID, ErrIneligible)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		completions, _, err := loadCollection[model.Completion](ctx, l.store, keyCompletions)
		if err != nil {
			return model.Redemption{}, err
		}
		redemptions, version, err := loadCollection[model.Redemption](ctx, l.store, keyRedemptions)
		if err != nil {
			return model.Redemption{}, err
		}

		balance := balanceOf(kid, completions, redemptions).Balance
		if reward.Cost > balance {
			return model.Redemption{}, fmt.Errorf("reward costs %d, balance is %d: %w", reward.Cost, balance, ErrInsufficientStars)
		}

		redemption := model.Redemption{
			ID:         l.newID(),
			RewardID:   rewardID,
			KidID:      kidID,
			Cost:       reward.Cost,
			RedeemedAt: l.now().UTC(),
		}

		err = saveCollection(ctx, l.store, keyRedemptions, append(redemptions, redemption), version)
		if errors.Is(err, kv.ErrVersionConflict) {
			l.logger.Debug("redemption raced, retrying", "kid_id", kidID, "reward_id", rewardID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return model.Redemption{}, err
		}

		l.logger.Info("reward redeemed", "redemption_id", redemption.ID, "kid_id", kidID, "reward_id", rewardID, "cost", redemption.Cost)
		return redemption, nil
	}

	return model.Redemption{}, fmt.Errorf("redeem reward %s: %w", rewardID, kv.ErrVersionConflict)
}
