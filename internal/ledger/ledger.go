// Package ledger records task completions: risk gating, cooldown
// enforcement, milestone boosting, pending-to-settled settlement, and the
// referral propagation hook for newly settled events.
package ledger

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lummalabs/lumma-core/internal/errors"
	"github.com/lummalabs/lumma-core/internal/mathx"
	"github.com/lummalabs/lumma-core/internal/referral"
	"github.com/lummalabs/lumma-core/internal/risk"
	"github.com/lummalabs/lumma-core/internal/store"
	"github.com/lummalabs/lumma-core/internal/tasks"
	"github.com/lummalabs/lumma-core/pkg/logger"
)

const (
	abuseScoreBlocked = 80
	abuseScoreReview  = 40
	riskWindow        = time.Hour
)

// Booster yields the current point multiplier for a user; the milestone NFT
// registry implements it.
type Booster interface {
	CurrentBoost(userID string) (float64, error)
}

type Ledger struct {
	store    store.Store
	referral *referral.Graph
	booster  Booster
	now      func() time.Time
}

func New(s store.Store, graph *referral.Graph, booster Booster) *Ledger {
	return &Ledger{store: s, referral: graph, booster: booster, now: time.Now}
}

// WithClock overrides the ledger's clock; tests use this.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// SettleDue settles the user's pending events whose delay has elapsed and
// propagates a referral reward for each, exactly once per event id. Every
// ledger read or write for a user runs this first; there is no background
// settlement.
func (l *Ledger) SettleDue(userID string) error {
	settled, err := l.store.SettleDuePointEvents(userID, l.now().UTC())
	if err != nil {
		return &errors.StorageError{Operation: "settle due point events", Err: err}
	}
	for _, event := range settled {
		if err := l.referral.PropagateReward(userID, event.ID, event.Points); err != nil {
			return err
		}
		logger.Info("Point event settled: user=%s task=%s points=%.2f", userID, event.TaskKey, event.Points)
	}
	return nil
}

// RecordEvent records a completion of taskKey for userID. A risk-blocked
// outcome is not an error: the returned event has status blocked, zero
// points, and no effect on balances.
func (l *Ledger) RecordEvent(userID, taskKey string, metadata map[string]interface{}) (*store.PointEvent, error) {
	user, err := l.store.GetOrCreateUser(userID, "")
	if err != nil {
		return nil, &errors.StorageError{Operation: "load user", Err: err}
	}
	if err := l.SettleDue(userID); err != nil {
		return nil, err
	}

	task, ok := tasks.ByKey(taskKey)
	if !ok {
		return nil, &errors.NotFoundError{Resource: "task", Identifier: taskKey}
	}

	now := l.now().UTC()
	assessment, err := l.assess(user, metadata, now)
	if err != nil {
		return nil, err
	}
	if err := l.persistRisk(userID, assessment, now); err != nil {
		return nil, err
	}

	if assessment.RiskFlag == store.RiskBlocked {
		blocked := &store.PointEvent{
			ID:        uuid.NewString(),
			UserID:    userID,
			TaskKey:   task.Key,
			Points:    0,
			Status:    store.PointBlocked,
			Reason:    strings.Join(assessment.Reasons, ","),
			Metadata:  metadata,
			CreatedAt: now,
		}
		if err := l.store.InsertPointEvent(blocked); err != nil {
			return nil, &errors.StorageError{Operation: "insert blocked point event", Err: err}
		}
		logger.Warn("Point event blocked: user=%s task=%s score=%d reasons=%s",
			userID, task.Key, assessment.Score, blocked.Reason)
		return blocked, nil
	}

	if task.CooldownHours > 0 {
		latest, err := l.store.LastPointEventForKey(userID, task.Key)
		if err != nil && !stderrors.Is(err, store.ErrNotFound) {
			return nil, &errors.StorageError{Operation: "load last point event", Err: err}
		}
		if latest != nil {
			cooldown := time.Duration(task.CooldownHours) * time.Hour
			if now.Sub(latest.CreatedAt) < cooldown {
				return nil, &errors.ConflictError{
					Message: fmt.Sprintf("task %s is in cooldown, try again in %dh", task.Key, task.CooldownHours),
				}
			}
		}
	}

	boost, err := l.booster.CurrentBoost(userID)
	if err != nil {
		return nil, err
	}
	boostedPoints := mathx.Round2(task.Points * boost)

	event := &store.PointEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		TaskKey:   task.Key,
		Points:    boostedPoints,
		Status:    store.PointSettled,
		Metadata:  metadata,
		CreatedAt: now,
	}
	if task.Type == tasks.TypeSocial && task.SocialDelayHours > 0 {
		settlesAt := now.Add(time.Duration(task.SocialDelayHours) * time.Hour)
		event.Status = store.PointPending
		event.SettlesAt = &settlesAt
	}

	if err := l.store.InsertPointEvent(event); err != nil {
		return nil, &errors.StorageError{Operation: "insert point event", Err: err}
	}
	if event.Status == store.PointSettled {
		if err := l.referral.PropagateReward(userID, event.ID, event.Points); err != nil {
			return nil, err
		}
	}
	return event, nil
}

// RecordEventOnce records a task completion only if the user has never
// earned it before. Milestone-style tasks (first_deposit, swaps_10, ...) are
// awarded through this so repeats are silent no-ops.
func (l *Ledger) RecordEventOnce(userID, taskKey string, metadata map[string]interface{}) (*store.PointEvent, error) {
	already, err := l.store.HasSettledPointEvent(userID, taskKey)
	if err != nil {
		return nil, &errors.StorageError{Operation: "check settled event", Err: err}
	}
	if already {
		return nil, nil
	}
	return l.RecordEvent(userID, taskKey, metadata)
}

// GrantBonus inserts a settled bonus event outside the task catalog (quest
// completion bonuses), guarded against double award by the settled-event key
// check, and propagates the referral reward for it.
func (l *Ledger) GrantBonus(userID, key string, points float64) (*store.PointEvent, error) {
	already, err := l.store.HasSettledPointEvent(userID, key)
	if err != nil {
		return nil, &errors.StorageError{Operation: "check bonus event", Err: err}
	}
	if already {
		return nil, nil
	}
	event := &store.PointEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		TaskKey:   key,
		Points:    mathx.Round2(points),
		Status:    store.PointSettled,
		CreatedAt: l.now().UTC(),
	}
	if err := l.store.InsertPointEvent(event); err != nil {
		return nil, &errors.StorageError{Operation: "insert bonus event", Err: err}
	}
	if err := l.referral.PropagateReward(userID, event.ID, event.Points); err != nil {
		return nil, err
	}
	return event, nil
}

// Summary is a per-user ledger overview.
type Summary struct {
	User            *store.User `json:"user"`
	Swaps           int         `json:"swaps"`
	Deposits        int         `json:"deposits"`
	TotalVaultValue float64     `json:"totalVaultValue"`
}

// SummaryFor settles due events and returns the user's current counts.
func (l *Ledger) SummaryFor(userID string) (*Summary, error) {
	if _, err := l.store.GetOrCreateUser(userID, ""); err != nil {
		return nil, &errors.StorageError{Operation: "load user", Err: err}
	}
	if err := l.SettleDue(userID); err != nil {
		return nil, err
	}
	user, err := l.store.GetUser(userID)
	if err != nil {
		return nil, &errors.StorageError{Operation: "load user", Err: err}
	}
	swaps, err := l.store.CountSwapEvents(userID)
	if err != nil {
		return nil, &errors.StorageError{Operation: "count swaps", Err: err}
	}
	deposits, err := l.store.CountVaultEvents(userID, store.VaultDeposit)
	if err != nil {
		return nil, &errors.StorageError{Operation: "count deposits", Err: err}
	}
	positions, err := l.store.ListVaultPositions(userID)
	if err != nil {
		return nil, &errors.StorageError{Operation: "list positions", Err: err}
	}
	total := 0.0
	for _, pos := range positions {
		total += pos.PrincipalUsd + pos.EarnedUsd
	}
	return &Summary{
		User:            user,
		Swaps:           swaps,
		Deposits:        deposits,
		TotalVaultValue: mathx.Round2(total),
	}, nil
}

func (l *Ledger) assess(user *store.User, metadata map[string]interface{}, now time.Time) (risk.Assessment, error) {
	cutoff := now.Add(-riskWindow)
	eventsInHour, err := l.store.CountPointEventsSince(user.ID, cutoff)
	if err != nil {
		return risk.Assessment{}, &errors.StorageError{Operation: "count recent events", Err: err}
	}
	referralAttempts, err := l.store.CountPointEventsForKeySince(user.ID, tasks.ReferralTaskKey, cutoff)
	if err != nil {
		return risk.Assessment{}, &errors.StorageError{Operation: "count referral attempts", Err: err}
	}

	repeatedFunding := false
	if metadata != nil {
		if v, ok := metadata["repeatedFundingSource"].(bool); ok {
			repeatedFunding = v
		}
	}
	return risk.Assess(risk.Signals{
		WalletAgeDays:              now.Sub(user.CreatedAt).Hours() / 24,
		EventsInLastHour:           eventsInHour,
		ReferralAttemptsInLastHour: referralAttempts,
		RepeatedFundingSource:      repeatedFunding,
	}), nil
}

func (l *Ledger) persistRisk(userID string, assessment risk.Assessment, now time.Time) error {
	if err := l.store.SetRiskFlag(userID, assessment.RiskFlag); err != nil {
		return &errors.StorageError{Operation: "set risk flag", Err: err}
	}
	score := abuseScoreReview
	if assessment.RiskFlag == store.RiskBlocked {
		score = abuseScoreBlocked
	}
	for _, reason := range assessment.Reasons {
		flag := &store.AbuseFlag{
			ID:        uuid.NewString(),
			UserID:    userID,
			Signal:    reason,
			Score:     score,
			CreatedAt: now,
		}
		if err := l.store.InsertAbuseFlag(flag); err != nil {
			return &errors.StorageError{Operation: "insert abuse flag", Err: err}
		}
	}
	return nil
}
