// Package quest aggregates live progress from the other components against
// quest requirements and awards one-time completion bonuses.
package quest

import (
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/lummalabs/lumma-core/internal/errors"
	"github.com/lummalabs/lumma-core/internal/ledger"
	"github.com/lummalabs/lumma-core/internal/referral"
	"github.com/lummalabs/lumma-core/internal/store"
	"github.com/lummalabs/lumma-core/internal/tasks"
	"github.com/lummalabs/lumma-core/pkg/logger"
)

// RequirementKind enumerates what a quest task counts.
type RequirementKind string

const (
	KindDeposit     RequirementKind = "deposit"
	KindSwaps       RequirementKind = "swaps"
	KindInvite      RequirementKind = "invite_active_friend"
	KindSocialProof RequirementKind = "social_proof"
)

// Requirement is one quest task with its target count.
type Requirement struct {
	ID     string          `json:"id"`
	Label  string          `json:"label"`
	Kind   RequirementKind `json:"kind"`
	Target int             `json:"target"`
}

// Definition is one quest with its fixed completion bonus.
type Definition struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Week         string        `json:"week"`
	Points       float64       `json:"points"`
	Scarcity     int           `json:"scarcity"`
	Requirements []Requirement `json:"tasks"`
}

var definitions = []Definition{
	{
		ID: "arc-orbit", Name: "Arc Orbit", Week: "Week 1", Points: 350, Scarcity: 1000,
		Requirements: []Requirement{
			{ID: "orbit-deposit", Label: "Deposit in any vault", Kind: KindDeposit, Target: 1},
			{ID: "orbit-swaps", Label: "Complete 3 swaps", Kind: KindSwaps, Target: 3},
			{ID: "orbit-invite", Label: "Invite 1 active friend", Kind: KindInvite, Target: 1},
		},
	},
	{
		ID: "stable-surgeon", Name: "Stable Surgeon", Week: "Week 1", Points: 280, Scarcity: 1500,
		Requirements: []Requirement{
			{ID: "surgeon-swaps", Label: "Complete 5 swaps", Kind: KindSwaps, Target: 5},
			{ID: "surgeon-social", Label: "Submit social proof", Kind: KindSocialProof, Target: 1},
		},
	},
}

// Definitions returns the quest catalog.
func Definitions() []Definition {
	return definitions
}

func byID(questID string) (Definition, bool) {
	for _, def := range definitions {
		if def.ID == questID {
			return def, true
		}
	}
	return Definition{}, false
}

type Engine struct {
	store    store.Store
	ledger   *ledger.Ledger
	referral *referral.Graph
	now      func() time.Time
}

func NewEngine(s store.Store, l *ledger.Ledger, graph *referral.Graph) *Engine {
	return &Engine{store: s, ledger: l, referral: graph, now: time.Now}
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// View is a quest with the user's live progress and run status.
type View struct {
	Definition
	Progress    map[string]int    `json:"progress"`
	Status      store.QuestStatus `json:"status"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

// progressFor recomputes the user's counters from source data; nothing is
// cached.
func (e *Engine) progressFor(userID string) (map[string]int, error) {
	deposits, err := e.store.CountVaultEvents(userID, store.VaultDeposit)
	if err != nil {
		return nil, &errors.StorageError{Operation: "count deposits", Err: err}
	}
	swaps, err := e.store.CountSwapEvents(userID)
	if err != nil {
		return nil, &errors.StorageError{Operation: "count swaps", Err: err}
	}
	invites, err := e.referral.ActiveInviteCount(userID)
	if err != nil {
		return nil, err
	}
	socialProof, err := e.store.CountSocialProofEvents(userID, tasks.SocialProofKeys)
	if err != nil {
		return nil, &errors.StorageError{Operation: "count social proof", Err: err}
	}
	return map[string]int{
		string(KindDeposit):     deposits,
		string(KindSwaps):       swaps,
		string(KindInvite):      invites,
		string(KindSocialProof): socialProof,
	}, nil
}

// ActiveQuests settles the user's due events and returns every quest with
// live progress.
func (e *Engine) ActiveQuests(userID string) ([]View, error) {
	if _, err := e.store.GetOrCreateUser(userID, ""); err != nil {
		return nil, &errors.StorageError{Operation: "load user", Err: err}
	}
	if err := e.ledger.SettleDue(userID); err != nil {
		return nil, err
	}
	progress, err := e.progressFor(userID)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(definitions))
	for _, def := range definitions {
		view := View{Definition: def, Progress: progress, Status: store.QuestInProgress}
		if run, err := e.store.GetQuestRun(userID, def.ID); err == nil {
			view.Status = run.Status
			view.CompletedAt = run.CompletedAt
		} else if !stderrors.Is(err, store.ErrNotFound) {
			return nil, &errors.StorageError{Operation: "load quest run", Err: err}
		}
		views = append(views, view)
	}
	return views, nil
}

// Complete marks a quest finished once every requirement is met. Calling it
// again for a completed quest returns the existing run without re-awarding;
// the bonus is additionally guarded by the settled quest_<id> event check.
func (e *Engine) Complete(userID, questID string) (*store.QuestRun, error) {
	def, ok := byID(questID)
	if !ok {
		return nil, &errors.NotFoundError{Resource: "quest", Identifier: questID}
	}
	if _, err := e.store.GetOrCreateUser(userID, ""); err != nil {
		return nil, &errors.StorageError{Operation: "load user", Err: err}
	}
	if err := e.ledger.SettleDue(userID); err != nil {
		return nil, err
	}

	progress, err := e.progressFor(userID)
	if err != nil {
		return nil, err
	}
	for _, req := range def.Requirements {
		if progress[string(req.Kind)] < req.Target {
			return nil, &errors.ConflictError{Message: "quest requirements are not yet satisfied"}
		}
	}

	if existing, err := e.store.GetQuestRun(userID, questID); err == nil {
		if existing.Status == store.QuestCompleted {
			return existing, nil
		}
	} else if !stderrors.Is(err, store.ErrNotFound) {
		return nil, &errors.StorageError{Operation: "load quest run", Err: err}
	}

	completedAt := e.now().UTC()
	run := &store.QuestRun{
		ID:          uuid.NewString(),
		QuestID:     questID,
		UserID:      userID,
		Status:      store.QuestCompleted,
		Progress:    progress,
		CompletedAt: &completedAt,
		CreatedAt:   completedAt,
	}
	if err := e.store.CompleteQuestRun(run); err != nil {
		if stderrors.Is(err, store.ErrDuplicate) {
			// Lost a race with a concurrent completion; the winner's run is
			// authoritative and the bonus was already granted.
			existing, gerr := e.store.GetQuestRun(userID, questID)
			if gerr != nil {
				return nil, &errors.StorageError{Operation: "load quest run", Err: gerr}
			}
			return existing, nil
		}
		return nil, &errors.StorageError{Operation: "complete quest run", Err: err}
	}

	if _, err := e.ledger.GrantBonus(userID, "quest_"+questID, def.Points); err != nil {
		return nil, err
	}
	logger.Info("Quest completed: user=%s quest=%s bonus=%.0f", userID, questID, def.Points)
	return run, nil
}
