// Package ledger keeps the household's chore-and-star accounting: kids,
// chores, completions, rewards, and redemptions. Each collection lives in
// one JSON document in the kv store; every mutation is a read-modify-write
// guarded by the document's version stamp, retried on conflict.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rowanhall/hearth/internal/kv"
	"github.com/rowanhall/hearth/internal/model"
)

const (
	keyKids        = "ledger:kids"
	keyChores      = "ledger:chores"
	keyRewards     = "ledger:rewards"
	keyCompletions = "ledger:completions"
	keyRedemptions = "ledger:redemptions"
)

// maxAttempts bounds the CAS retry loop on every mutation.
const maxAttempts = 5

type Ledger struct {
	store  kv.Store
	logger *slog.Logger

	// Overridable for tests.
	now   func() time.Time
	newID func() string
}

func New(store kv.Store, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// loadCollection reads one collection document. A missing document is an
// empty collection at version 0, so the first write creates it.
func loadCollection[T any](ctx context.Context, store kv.Store, key string) ([]T, int64, error) {
	doc, err := store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	var items []T
	if err := json.Unmarshal(doc.Value, &items); err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", key, err)
	}
	return items, doc.Version, nil
}

func saveCollection[T any](ctx context.Context, store kv.Store, key string, items []T, version int64) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = store.Put(ctx, key, data, version)
	return err
}

// updateCollection runs fn against the current collection and persists the
// result, retrying from a fresh read when a concurrent writer bumped the
// version first.
func updateCollection[T any](ctx context.Context, store kv.Store, key string, fn func([]T) ([]T, error)) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		items, version, err := loadCollection[T](ctx, store, key)
		if err != nil {
			return err
		}

		updated, err := fn(items)
		if err != nil {
			return err
		}

		err = saveCollection(ctx, store, key, updated, version)
		if errors.Is(err, kv.ErrVersionConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: %w", key, kv.ErrVersionConflict)
}

// --- Kids ---

func (l *Ledger) ListKids(ctx context.Context) ([]model.Kid, error) {
	kids, _, err := loadCollection[model.Kid](ctx, l.store, keyKids)
	return kids, err
}

func (l *Ledger) AddKid(ctx context.Context, name string) (model.Kid, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Kid{}, fmt.Errorf("%w: name is required", ErrValidation)
	}

	kid := model.Kid{
		ID:        l.newID(),
		Name:      name,
		CreatedAt: l.now().UTC(),
	}

	err := updateCollection(ctx, l.store, keyKids, func(kids []model.Kid) ([]model.Kid, error) {
		return append(kids, kid), nil
	})
	if err != nil {
		return model.Kid{}, err
	}

	l.logger.Info("kid added", "kid_id", kid.ID, "name", kid.Name)
	return kid, nil
}

func (l *Ledger) getKid(ctx context.Context, kidID string) (model.Kid, error) {
	kids, _, err := loadCollection[model.Kid](ctx, l.store, keyKids)
	if err != nil {
		return model.Kid{}, err
	}
	for _, k := range kids {
		if k.ID == kidID {
			return k, nil
		}
	}
	return model.Kid{}, fmt.Errorf("kid %s: %w", kidID, ErrNotFound)
}

// --- Chores ---

// ListChores returns chores, archived last unless excluded.
func (l *Ledger) ListChores(ctx context.Context, includeArchived bool) ([]model.Chore, error) {
	chores, _, err := loadCollection[model.Chore](ctx, l.store, keyChores)
	if err != nil {
		return nil, err
	}
	if includeArchived {
		return chores, nil
	}
	var active []model.Chore
	for _, c := range chores {
		if !c.Archived {
			active = append(active, c)
		}
	}
	return active, nil
}

func (l *Ledger) AddChore(ctx context.Context, title string, stars int, recurrence string, assignedTo []string) (model.Chore, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Chore{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if stars < 0 {
		return model.Chore{}, fmt.Errorf("%w: stars must be >= 0", ErrValidation)
	}
	if err := l.checkKidIDs(ctx, assignedTo); err != nil {
		return model.Chore{}, err
	}

	now := l.now().UTC()
	chore := model.Chore{
		ID:         l.newID(),
		Title:      title,
		Stars:      stars,
		Recurrence: recurrence,
		AssignedTo: assignedTo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := updateCollection(ctx, l.store, keyChores, func(chores []model.Chore) ([]model.Chore, error) {
		return append(chores, chore), nil
	})
	if err != nil {
		return model.Chore{}, err
	}

	l.logger.Info("chore added", "chore_id", chore.ID, "title", chore.Title, "stars", chore.Stars)
	return chore, nil
}

func (l *Ledger) UpdateChore(ctx context.Context, id, title string, stars int, recurrence string, assignedTo []string) (model.Chore, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Chore{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if stars < 0 {
		return model.Chore{}, fmt.Errorf("%w: stars must be >= 0", ErrValidation)
	}
	if err := l.checkKidIDs(ctx, assignedTo); err != nil {
		return model.Chore{}, err
	}

	var updated model.Chore
	err := updateCollection(ctx, l.store, keyChores, func(chores []model.Chore) ([]model.Chore, error) {
		for i := range chores {
			if chores[i].ID == id {
				chores[i].Title = title
				chores[i].Stars = stars
				chores[i].Recurrence = recurrence
				chores[i].AssignedTo = assignedTo
				chores[i].UpdatedAt = l.now().UTC()
				updated = chores[i]
				return chores, nil
			}
		}
		return nil, fmt.Errorf("chore %s: %w", id, ErrNotFound)
	})
	if err != nil {
		return model.Chore{}, err
	}
	return updated, nil
}

// ArchiveChore soft-deletes a chore; completions referencing it stay valid.
func (l *Ledger) ArchiveChore(ctx context.Context, id string) error {
	return updateCollection(ctx, l.store, keyChores, func(chores []model.Chore) ([]model.Chore, error) {
		for i := range chores {
			if chores[i].ID == id {
				chores[i].Archived = true
				chores[i].UpdatedAt = l.now().UTC()
				return chores, nil
			}
		}
		return nil, fmt.Errorf("chore %s: %w", id, ErrNotFound)
	})
}

func (l *Ledger) getChore(ctx context.Context, choreID string) (model.Chore, error) {
	chores, _, err := loadCollection[model.Chore](ctx, l.store, keyChores)
	if err != nil {
		return model.Chore{}, err
	}
	for _, c := range chores {
		if c.ID == choreID {
			return c, nil
		}
	}
	return model.Chore{}, fmt.Errorf("chore %s: %w", choreID, ErrNotFound)
}

func (l *Ledger) checkKidIDs(ctx context.Context, kidIDs []string) error {
	if len(kidIDs) == 0 {
		return nil
	}
	kids, _, err := loadCollection[model.Kid](ctx, l.store, keyKids)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(kids))
	for _, k := range kids {
		known[k.ID] = true
	}
	for _, id := range kidIDs {
		if !known[id] {
			return fmt.Errorf("kid %s: %w", id, ErrNotFound)
		}
	}
	return nil
}

// --- Completions ---

type CompletionFilter struct {
	KidID   string
	ChoreID string
	Status  model.CompletionStatus
}

func (f CompletionFilter) matches(c model.Completion) bool {
	if f.KidID != "" && c.KidID != f.KidID {
		return false
	}
	if f.ChoreID != "" && c.ChoreID != f.ChoreID {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	return true
}

func (l *Ledger) ListCompletions(ctx context.Context, filter CompletionFilter) ([]model.Completion, error) {
	completions, _, err := loadCollection[model.Completion](ctx, l.store, keyCompletions)
	if err != nil {
		return nil, err
	}
	var out []model.Completion
	for _, c := range completions {
		if filter.matches(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// RecordCompletion marks a chore done by a kid. The chore's current star
// value is snapshotted; approval happens separately.
func (l *Ledger) RecordCompletion(ctx context.Context, choreID, kidID string) (model.Completion, error) {
	chore, err := l.getChore(ctx, choreID)
	if err != nil {
		return model.Completion{}, err
	}
	if chore.Archived {
		return model.Completion{}, fmt.Errorf("%w: chore is archived", ErrValidation)
	}
	if _, err := l.getKid(ctx, kidID); err != nil {
		return model.Completion{}, err
	}
	if !chore.AssignedToKid(kidID) {
		return model.Completion{}, fmt.Errorf("%w: chore %q is not assigned to kid %q", ErrValidation, choreID, kidID)
	}

	completion := model.Completion{
		ID:          l.newID(),
		ChoreID:     choreID,
		KidID:       kidID,
		Stars:       chore.Stars,
		Status:      model.CompletionPending,
		CompletedAt: l.now().UTC(),
	}

	err = updateCollection(ctx, l.store, keyCompletions, func(completions []model.Completion) ([]model.Completion, error) {
		return append(completions, completion), nil
	})
	if err != nil {
		return model.Completion{}, err
	}

	l.logger.Info("completion recorded", "completion_id", completion.ID, "chore_id", choreID, "kid_id", kidID)
	return completion, nil
}

// ApproveCompletion flips a pending completion to approved, which is the
// moment its stars start counting toward the kid's balance. Approving an
// already-approved completion is a no-op.
func (l *Ledger) ApproveCompletion(ctx context.Context, completionID string) (model.Completion, error) {
	var approved model.Completion
	err := updateCollection(ctx, l.store, keyCompletions, func(completions []model.Completion) ([]model.Completion, error) {
		for i := range completions {
			if completions[i].ID != completionID {
				continue
			}
			if completions[i].Status != model.CompletionApproved {
				now := l.now().UTC()
				completions[i].Status = model.CompletionApproved
				completions[i].ApprovedAt = &now
			}
			approved = completions[i]
			return completions, nil
		}
		return nil, fmt.Errorf("completion %s: %w", completionID, ErrNotFound)
	})
	if err != nil {
		return model.Completion{}, err
	}
	return approved, nil
}

// RevokeCompletion removes a completion record entirely. This is the
// administrative correction path; a revoke after stars were spent can leave
// the balance negative, in which case further redemptions are refused until
// it recovers.
func (l *Ledger) RevokeCompletion(ctx context.Context, completionID string) error {
	err := updateCollection(ctx, l.store, keyCompletions, func(completions []model.Completion) ([]model.Completion, error) {
		for i := range completions {
			if completions[i].ID == completionID {
				return append(completions[:i], completions[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("completion %s: %w", completionID, ErrNotFound)
	})
	if err != nil {
		return err
	}
	l.logger.Info("completion revoked", "completion_id", completionID)
	return nil
}

// --- Rewards ---

func (l *Ledger) ListRewards(ctx context.Context, includeArchived bool) ([]model.Reward, error) {
	rewards, _, err := loadCollection[model.Reward](ctx, l.store, keyRewards)
	if err != nil {
		return nil, err
	}
	if includeArchived {
		return rewards, nil
	}
	var active []model.Reward
	for _, r := range rewards {
		if !r.Archived {
			active = append(active, r)
		}
	}
	return active, nil
}

func (l *Ledger) AddReward(ctx context.Context, title string, cost int, eligibleKids []string) (model.Reward, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Reward{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if cost < 0 {
		return model.Reward{}, fmt.Errorf("%w: cost must be >= 0", ErrValidation)
	}
	if err := l.checkKidIDs(ctx, eligibleKids); err != nil {
		return model.Reward{}, err
	}

	now := l.now().UTC()
	reward := model.Reward{
		ID:           l.newID(),
		Title:        title,
		Cost:         cost,
		EligibleKids: eligibleKids,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := updateCollection(ctx, l.store, keyRewards, func(rewards []model.Reward) ([]model.Reward, error) {
		return append(rewards, reward), nil
	})
	if err != nil {
		return model.Reward{}, err
	}

	l.logger.Info("reward added", "reward_id", reward.ID, "title", reward.Title, "cost", reward.Cost)
	return reward, nil
}

func (l *Ledger) UpdateReward(ctx context.Context, id, title string, cost int, eligibleKids []string) (model.Reward, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Reward{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if cost < 0 {
		return model.Reward{}, fmt.Errorf("%w: cost must be >= 0", ErrValidation)
	}
	if err := l.checkKidIDs(ctx, eligibleKids); err != nil {
		return model.Reward{}, err
	}

	var updated model.Reward
	err := updateCollection(ctx, l.store, keyRewards, func(rewards []model.Reward) ([]model.Reward, error) {
		for i := range rewards {
			if rewards[i].ID == id {
				rewards[i].Title = title
				rewards[i].Cost = cost
				rewards[i].EligibleKids = eligibleKids
				rewards[i].UpdatedAt = l.now().UTC()
				updated = rewards[i]
				return rewards, nil
			}
		}
		return nil, fmt.Errorf("reward %s: %w", id, ErrNotFound)
	})
	if err != nil {
		return model.Reward{}, err
	}
	return updated, nil
}

// ArchiveReward takes a reward off the board. Historical redemptions keep
// referencing it; only future eligibility changes.
func (l *Ledger) ArchiveReward(ctx context.Context, id string) error {
	return updateCollection(ctx, l.store, keyRewards, func(rewards []model.Reward) ([]model.Reward, error) {
		for i := range rewards {
			if rewards[i].ID == id {
				rewards[i].Archived = true
				rewards[i].UpdatedAt = l.now().UTC()
				return rewards, nil
			}
		}
		return nil, fmt.Errorf("reward %s: %w", id, ErrNotFound)
	})
}

func (l *Ledger) getReward(ctx context.Context, rewardID string) (model.Reward, error) {
	rewards, _, err := loadCollection[model.Reward](ctx, l.store, keyRewards)
	if err != nil {
		return model.Reward{}, err
	}
	for _, r := range rewards {
		if r.ID == rewardID {
			return r, nil
		}
	}
	return model.Reward{}, fmt.Errorf("reward %s: %w", rewardID, ErrNotFound)
}

// --- Redemptions ---

type RedemptionFilter struct {
	KidID    string
	RewardID string
}

func (l *Ledger) ListRedemptions(ctx context.Context, filter RedemptionFilter) ([]model.Redemption, error) {
	redemptions, _, err := loadCollection[model.Redemption](ctx, l.store, keyRedemptions)
	if err != nil {
		return nil, err
	}
	var out []model.Redemption
	for _, r := range redemptions {
		if filter.KidID != "" && r.KidID != filter.KidID {
			continue
		}
		if filter.RewardID != "" && r.RewardID != filter.RewardID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// --- Balances ---

func balanceOf(kid model.Kid, completions []model.Completion, redemptions []model.Redemption) model.StarBalance {
	b := model.StarBalance{KidID: kid.ID, KidName: kid.Name}
	for _, c := range completions {
		if c.KidID == kid.ID && c.Status == model.CompletionApproved {
			b.Earned += c.Stars
		}
	}
	for _, r := range redemptions {
		if r.KidID == kid.ID {
			b.Spent += r.Cost
		}
	}
	b.Balance = b.Earned - b.Spent
	return b
}

// Balance computes a single kid's star balance: approved completion stars
// minus redemption costs.
func (l *Ledger) Balance(ctx context.Context, kidID string) (model.StarBalance, error) {
	kid, err := l.getKid(ctx, kidID)
	if err != nil {
		return model.StarBalance{}, err
	}
	completions, _, err := loadCollection[model.Completion](ctx, l.store, keyCompletions)
	if err != nil {
		return model.StarBalance{}, err
	}
	redemptions, _, err := loadCollection[model.Redemption](ctx, l.store, keyRedemptions)
	if err != nil {
		return model.StarBalance{}, err
	}
	return balanceOf(kid, completions, redemptions), nil
}

// Balances returns every kid's balance, highest first.
func (l *Ledger) Balances(ctx context.Context) ([]model.StarBalance, error) {
	kids, _, err := loadCollection[model.Kid](ctx, l.store, keyKids)
	if err != nil {
		return nil, err
	}
	completions, _, err := loadCollection[model.Completion](ctx, l.store, keyCompletions)
	if err != nil {
		return nil, err
	}
	redemptions, _, err := loadCollection[model.Redemption](ctx, l.store, keyRedemptions)
	if err != nil {
		return nil, err
	}

	balances := make([]model.StarBalance, 0, len(kids))
	for _, kid := range kids {
		balances = append(balances, balanceOf(kid, completions, redemptions))
	}
	slices.SortFunc(balances, func(a, b model.StarBalance) int {
		return b.Balance - a.Balance
	})
	return balances, nil
}
