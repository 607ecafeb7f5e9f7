// Package vault holds the fixed vault catalog, the bucket-reproducible APY
// model, simple-interest accrual, and the deposit/withdraw ledger.
package vault

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/lummalabs/lumma-core/internal/errors"
	"github.com/lummalabs/lumma-core/internal/mathx"
	"github.com/lummalabs/lumma-core/internal/referral"
	"github.com/lummalabs/lumma-core/internal/store"
	"github.com/lummalabs/lumma-core/pkg/logger"
)

const apyBucketMinutes = 15

// Definition is one catalog entry. TvlBaseline seeds the displayed TVL, which
// then tracks net flows.
type Definition struct {
	ID          string  `json:"id"`
	Risk        string  `json:"risk"`
	Name        string  `json:"name"`
	ApyMin      float64 `json:"apyMin"`
	ApyMax      float64 `json:"apyMax"`
	TxCapUsd    float64 `json:"txCapUsd"`
	TvlBaseline float64 `json:"-"`
}

var catalog = []Definition{
	{ID: "vault-conservative", Risk: "conservative", Name: "Conservative Vault", ApyMin: 5, ApyMax: 8, TxCapUsd: 25000, TvlBaseline: 128000},
	{ID: "vault-balanced", Risk: "balanced", Name: "Balanced Vault", ApyMin: 8, ApyMax: 12, TxCapUsd: 25000, TvlBaseline: 256000},
	{ID: "vault-aggressive", Risk: "aggressive", Name: "Aggressive Vault", ApyMin: 12, ApyMax: 20, TxCapUsd: 25000, TvlBaseline: 512000},
}

// Catalog returns the fixed vault definitions.
func Catalog() []Definition {
	return catalog
}

func byID(vaultID string) (Definition, bool) {
	for _, def := range catalog {
		if def.ID == vaultID {
			return def, true
		}
	}
	return Definition{}, false
}

// EstimateAPY derives the advertised APY for a vault at a point in time. The
// value is constant within each 15-minute bucket: a seeded hash supplies the
// per-bucket drift and a 6-hour sine supplies the slow wave, clamped into
// [apyMin, apyMax].
func EstimateAPY(def Definition, at time.Time) float64 {
	bucket := mathx.FloorToMinutes(at.UTC(), apyBucketMinutes).Format(time.RFC3339)
	drift := mathx.DeterministicNumber(def.ID + ":" + bucket)
	center := (def.ApyMin + def.ApyMax) / 2
	amplitude := (def.ApyMax - def.ApyMin) / 2
	wave := math.Sin(float64(at.UnixMilli()) / (1000 * 60 * 60 * 6))
	apy := center + amplitude*0.5*wave + amplitude*(drift-0.5)
	return mathx.Round2(mathx.Clamp(apy, def.ApyMin, def.ApyMax))
}

// AccrueSimpleInterest adds non-compounding interest on principal for the
// elapsed time at apyPercent and returns the updated earned total. Negative
// elapsed time accrues nothing.
func AccrueSimpleInterest(principalUsd, earnedUsd, apyPercent float64, from, to time.Time) float64 {
	elapsed := to.Sub(from)
	if elapsed < 0 {
		elapsed = 0
	}
	yearsElapsed := elapsed.Hours() / (24 * 365)
	interest := principalUsd * (apyPercent / 100) * yearsElapsed
	return mathx.Round2(earnedUsd + interest)
}

type Accrual struct {
	store    store.Store
	referral *referral.Graph
	now      func() time.Time
}

func NewAccrual(s store.Store, graph *referral.Graph) *Accrual {
	return &Accrual{store: s, referral: graph, now: time.Now}
}

func (a *Accrual) WithClock(now func() time.Time) *Accrual {
	a.now = now
	return a
}

// Deposit accrues the user's existing position, then adds principal. Fails
// when vaults are paused, the vault is unknown, or amount exceeds the
// per-transaction cap.
func (a *Accrual) Deposit(userID, vaultID string, amount float64) (*store.VaultPosition, error) {
	if amount <= 0 {
		return nil, &errors.ValidationError{Field: "amount", Message: "must be positive"}
	}
	paused, err := a.store.GetSystemFlag(store.VaultPauseFlag)
	if err != nil {
		return nil, &errors.StorageError{Operation: "read pause flag", Err: err}
	}
	if paused {
		return nil, &errors.ConflictError{Message: "vaults are currently paused"}
	}
	def, ok := byID(vaultID)
	if !ok {
		return nil, &errors.NotFoundError{Resource: "vault", Identifier: vaultID}
	}
	if amount > def.TxCapUsd {
		return nil, &errors.ConflictError{
			Message: fmt.Sprintf("amount exceeds per-transaction cap of %.0f USDC", def.TxCapUsd),
		}
	}
	if _, err := a.store.GetOrCreateUser(userID, ""); err != nil {
		return nil, &errors.StorageError{Operation: "load user", Err: err}
	}

	now := a.now().UTC()
	pos, err := a.store.UpdateVaultPosition(userID, vaultID, func(pos *store.VaultPosition) error {
		if !pos.LastAccruedAt.IsZero() {
			pos.EarnedUsd = AccrueSimpleInterest(pos.PrincipalUsd, pos.EarnedUsd, EstimateAPY(def, now), pos.LastAccruedAt, now)
		}
		pos.PrincipalUsd = mathx.Round2(pos.PrincipalUsd + amount)
		pos.LastAccruedAt = now
		return nil
	})
	if err != nil {
		return nil, wrapUpdateErr("deposit", err)
	}

	event := &store.VaultEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		VaultID:   vaultID,
		Action:    store.VaultDeposit,
		Amount:    mathx.Round2(amount),
		CreatedAt: now,
	}
	if err := a.store.InsertVaultEvent(event); err != nil {
		return nil, &errors.StorageError{Operation: "insert vault event", Err: err}
	}
	if err := a.referral.EnableRewardsForUser(userID); err != nil {
		return nil, err
	}
	logger.Info("Vault deposit: user=%s vault=%s amount=%.2f", userID, vaultID, amount)
	return pos, nil
}

// Withdraw accrues first, then takes the amount from earned before
// principal; neither may go negative.
func (a *Accrual) Withdraw(userID, vaultID string, amount float64) (*store.VaultPosition, error) {
	if amount <= 0 {
		return nil, &errors.ValidationError{Field: "amount", Message: "must be positive"}
	}
	def, ok := byID(vaultID)
	if !ok {
		return nil, &errors.NotFoundError{Resource: "vault", Identifier: vaultID}
	}

	now := a.now().UTC()
	pos, err := a.store.UpdateVaultPosition(userID, vaultID, func(pos *store.VaultPosition) error {
		if pos.LastAccruedAt.IsZero() {
			return &errors.NotFoundError{Resource: "vault position", Identifier: vaultID}
		}
		pos.EarnedUsd = AccrueSimpleInterest(pos.PrincipalUsd, pos.EarnedUsd, EstimateAPY(def, now), pos.LastAccruedAt, now)
		if amount > pos.PrincipalUsd+pos.EarnedUsd {
			return &errors.ConflictError{Message: "withdrawal amount exceeds position value"}
		}
		remaining := amount
		if pos.EarnedUsd >= remaining {
			pos.EarnedUsd = mathx.Round2(pos.EarnedUsd - remaining)
		} else {
			remaining = mathx.Round2(remaining - pos.EarnedUsd)
			pos.EarnedUsd = 0
			pos.PrincipalUsd = mathx.Round2(math.Max(0, pos.PrincipalUsd-remaining))
		}
		pos.LastAccruedAt = now
		return nil
	})
	if err != nil {
		return nil, wrapUpdateErr("withdraw", err)
	}

	event := &store.VaultEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		VaultID:   vaultID,
		Action:    store.VaultWithdraw,
		Amount:    mathx.Round2(amount),
		CreatedAt: now,
	}
	if err := a.store.InsertVaultEvent(event); err != nil {
		return nil, &errors.StorageError{Operation: "insert vault event", Err: err}
	}
	if err := a.referral.EnableRewardsForUser(userID); err != nil {
		return nil, err
	}
	logger.Info("Vault withdrawal: user=%s vault=%s amount=%.2f", userID, vaultID, amount)
	return pos, nil
}

// View is one vault as presented to a user: catalog entry plus live-accrued
// position, pause state, and the current APY estimate.
type View struct {
	Definition
	TvlUsd       float64             `json:"tvlUsd"`
	EstimatedApy float64             `json:"estimatedApy"`
	Paused       bool                `json:"paused"`
	Position     store.VaultPosition `json:"position"`
}

// Views reports every catalog vault with the user's accrued position.
// Accrual here is a live read: the stored position is brought current before
// being returned.
func (a *Accrual) Views(userID string) ([]View, error) {
	if _, err := a.store.GetOrCreateUser(userID, ""); err != nil {
		return nil, &errors.StorageError{Operation: "load user", Err: err}
	}
	paused, err := a.store.GetSystemFlag(store.VaultPauseFlag)
	if err != nil {
		return nil, &errors.StorageError{Operation: "read pause flag", Err: err}
	}

	now := a.now().UTC()
	views := make([]View, 0, len(catalog))
	for _, def := range catalog {
		pos, err := a.store.GetVaultPosition(userID, def.ID)
		if err == nil && !pos.LastAccruedAt.IsZero() {
			updated, uerr := a.store.UpdateVaultPosition(userID, def.ID, func(p *store.VaultPosition) error {
				p.EarnedUsd = AccrueSimpleInterest(p.PrincipalUsd, p.EarnedUsd, EstimateAPY(def, now), p.LastAccruedAt, now)
				p.LastAccruedAt = now
				return nil
			})
			if uerr != nil {
				return nil, wrapUpdateErr("accrue position", uerr)
			}
			pos = updated
		} else {
			pos = &store.VaultPosition{UserID: userID, VaultID: def.ID}
		}

		deposits, withdrawals, err := a.store.SumVaultFlows(def.ID)
		if err != nil {
			return nil, &errors.StorageError{Operation: "sum vault flows", Err: err}
		}
		views = append(views, View{
			Definition:   def,
			TvlUsd:       mathx.Round2(math.Max(0, def.TvlBaseline+deposits-withdrawals)),
			EstimatedApy: EstimateAPY(def, now),
			Paused:       paused,
			Position:     *pos,
		})
	}
	return views, nil
}

// wrapUpdateErr keeps typed domain errors raised inside the position callback
// and wraps everything else as a storage failure.
func wrapUpdateErr(operation string, err error) error {
	switch err.(type) {
	case *errors.ValidationError, *errors.NotFoundError, *errors.ConflictError, *errors.AuthorizationError:
		return err
	default:
		return &errors.StorageError{Operation: operation, Err: err}
	}
}
