package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/rowanhall/hearth/internal/kv"
)

// approveStars gives the kid an approved completion worth the given stars.
func approveStars(t *testing.T, l *Ledger, kidID string, stars int) {
	t.Helper()
	ctx := context.Background()
	chore, err := l.AddChore(ctx, "Chore", stars, "", nil)
	if err != nil {
		t.Fatalf("add chore: %v", err)
	}
	c, err := l.RecordCompletion(ctx, chore.ID, kidID)
	if err != nil {
		t.Fatalf("record completion: %v", err)
	}
	if _, err := l.ApproveCompletion(ctx, c.ID); err != nil {
		t.Fatalf("approve completion: %v", err)
	}
}

func TestRedeemHappyPath(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()

	ama, _ := l.AddKid(ctx, "Ama")
	approveStars(t, l, ama.ID, 3)
	approveStars(t, l, ama.ID, 2)

	reward, _ := l.AddReward(ctx, "Movie night", 5, nil)

	redemption, err := l.Redeem(ctx, ama.ID, reward.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if redemption.Cost != 5 {
		t.Errorf("cost = %d, want 5", redemption.Cost)
	}

	balance, _ := l.Balance(ctx, ama.ID)
	if balance.Balance != 0 {
		t.Errorf("balance = %d, want 0", balance.Balance)
	}

	// One more star's worth is now unaffordable.
	cheap, _ := l.AddReward(ctx, "Sticker", 1, nil)
	_, err = l.Redeem(ctx, ama.ID, cheap.ID)
	if !errors.Is(err, ErrInsufficientStars) {
		t.Errorf("err = %v, want ErrInsufficientStars", err)
	}

	redemptions, _ := l.ListRedemptions(ctx, RedemptionFilter{KidID: ama.ID})
	if len(redemptions) != 1 {
		t.Errorf("redemptions = %d, want 1 (failed redeem must not persist)", len(redemptions))
	}
}

func TestRedeemIneligible(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()

	ama, _ := l.AddKid(ctx, "Ama")
	theo, _ := l.AddKid(ctx, "Theo")
	approveStars(t, l, theo.ID, 10)

	onlyAma, _ := l.AddReward(ctx, "Ama only", 1, []string{ama.ID})
	if _, err := l.Redeem(ctx, theo.ID, onlyAma.ID); !errors.Is(err, ErrIneligible) {
		t.Errorf("err = %v, want ErrIneligible", err)
	}

	archived, _ := l.AddReward(ctx, "Old prize", 1, nil)
	if err := l.ArchiveReward(ctx, archived.ID); err != nil {
		t.Fatalf("archive reward: %v", err)
	}
	if _, err := l.Redeem(ctx, theo.ID, archived.ID); !errors.Is(err, ErrIneligible) {
		t.Errorf("err = %v, want ErrIneligible", err)
	}
}

func TestRedeemNotFound(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()

	kid, _ := l.AddKid(ctx, "Nia")
	if _, err := l.Redeem(ctx, kid.ID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("reward err = %v, want ErrNotFound", err)
	}
	reward, _ := l.AddReward(ctx, "Prize", 1, nil)
	if _, err := l.Redeem(ctx, "missing", reward.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("kid err = %v, want ErrNotFound", err)
	}
}

func TestArchiveRewardKeepsHistory(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()

	kid, _ := l.AddKid(ctx, "Ama")
	approveStars(t, l, kid.ID, 5)
	reward, _ := l.AddReward(ctx, "Ice cream", 5, nil)

	redemption, err := l.Redeem(ctx, kid.ID, reward.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	if err := l.ArchiveReward(ctx, reward.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	redemptions, _ := l.ListRedemptions(ctx, RedemptionFilter{RewardID: reward.ID})
	if len(redemptions) != 1 || redemptions[0].ID != redemption.ID || redemptions[0].Cost != 5 {
		t.Errorf("redemptions = %+v", redemptions)
	}

	board, _ := l.ListRewards(ctx, false)
	if len(board) != 0 {
		t.Errorf("board = %d rewards, want 0", len(board))
	}
}

func TestRedemptionCostSurvivesRewardEdit(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()

	kid, _ := l.AddKid(ctx, "Theo")
	approveStars(t, l, kid.ID, 10)
	reward, _ := l.AddReward(ctx, "Game hour", 4, nil)

	l.Redeem(ctx, kid.ID, reward.ID)

	if _, err := l.UpdateReward(ctx, reward.ID, "Game hour", 9, nil); err != nil {
		t.Fatalf("update reward: %v", err)
	}

	redemptions, _ := l.ListRedemptions(ctx, RedemptionFilter{KidID: kid.ID})
	if len(redemptions) != 1 || redemptions[0].Cost != 4 {
		t.Errorf("redemptions = %+v, want snapshotted cost 4", redemptions)
	}

	balance, _ := l.Balance(ctx, kid.ID)
	if balance.Balance != 6 {
		t.Errorf("balance = %d, want 6", balance.Balance)
	}
}

func TestRedeemAfterNegativeBalance(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()

	kid, _ := l.AddKid(ctx, "Nia")
	chore, _ := l.AddChore(ctx, "Big job", 5, "", nil)
	c, _ := l.RecordCompletion(ctx, chore.ID, kid.ID)
	l.ApproveCompletion(ctx, c.ID)

	reward, _ := l.AddReward(ctx, "Prize", 5, nil)
	if _, err := l.Redeem(ctx, kid.ID, reward.ID); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	// Administrative correction drives the balance negative.
	if err := l.RevokeCompletion(ctx, c.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	balance, _ := l.Balance(ctx, kid.ID)
	if balance.Balance != -5 {
		t.Fatalf("balance = %d, want -5", balance.Balance)
	}

	free, _ := l.AddReward(ctx, "Free hug", 0, nil)
	if _, err := l.Redeem(ctx, kid.ID, free.ID); !errors.Is(err, ErrInsufficientStars) {
		t.Errorf("err = %v, want ErrInsufficientStars while balance is negative", err)
	}
}

// conflictingStore wraps a kv.Store and fails the first n Puts against a key
// with a version conflict, simulating a concurrent writer.
type conflictingStore struct {
	kv.Store
	key       string
	conflicts int
}

func (s *conflictingStore) Put(ctx context.Context, key string, value json.RawMessage, expectedVersion int64) (int64, error) {
	if key == s.key && s.conflicts > 0 {
		s.conflicts--
		return 0, kv.ErrVersionConflict
	}
	return s.Store.Put(ctx, key, value, expectedVersion)
}

func TestRedeemRetriesOnConflict(t *testing.T) {
	inner, err := kv.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { inner.Close() })

	wrapped := &conflictingStore{Store: inner, key: keyRedemptions, conflicts: 2}
	l := New(wrapped, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	kid, _ := l.AddKid(ctx, "Ama")
	approveStars(t, l, kid.ID, 5)
	reward, _ := l.AddReward(ctx, "Prize", 5, nil)

	redemption, err := l.Redeem(ctx, kid.ID, reward.ID)
	if err != nil {
		t.Fatalf("redeem with conflicts: %v", err)
	}
	if redemption.Cost != 5 {
		t.Errorf("cost = %d, want 5", redemption.Cost)
	}

	redemptions, _ := l.ListRedemptions(ctx, RedemptionFilter{})
	if len(redemptions) != 1 {
		t.Errorf("redemptions = %d, want exactly 1", len(redemptions))
	}
}

func TestRedeemGivesUpAfterMaxConflicts(t *testing.T) {
	inner, err := kv.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { inner.Close() })

	wrapped := &conflictingStore{Store: inner, key: keyRedemptions, conflicts: maxAttempts}
	l := New(wrapped, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	kid, _ := l.AddKid(ctx, "Theo")
	approveStars(t, l, kid.ID, 3)
	reward, _ := l.AddReward(ctx, "Prize", 1, nil)

	if _, err := l.Redeem(ctx, kid.ID, reward.ID); !errors.Is(err, kv.ErrVersionConflict) {
		t.Errorf("err = %v, want ErrVersionConflict after exhausting retries", err)
	}
}
