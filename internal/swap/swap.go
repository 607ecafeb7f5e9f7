// Package swap issues advisory stable-pair quotes and records executed
// swaps. Quotes are deterministic per minute bucket; they are never held or
// expired server-side, callers simply re-request.
package swap

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lummalabs/lumma-core/internal/errors"
	"github.com/lummalabs/lumma-core/internal/mathx"
	"github.com/lummalabs/lumma-core/internal/referral"
	"github.com/lummalabs/lumma-core/internal/store"
	"github.com/lummalabs/lumma-core/pkg/logger"
)

const (
	// QuoteValiditySeconds is advisory: the engine never blocks on expiry.
	QuoteValiditySeconds = 30
	suggestedSlippageBps = 30
)

var supportedAssets = map[string]bool{"USDC": true, "EURC": true}

// Quote is an advisory rate for a stable pair within the current minute
// bucket.
type Quote struct {
	From                 string  `json:"from"`
	To                   string  `json:"to"`
	Amount               float64 `json:"amount"`
	Rate                 float64 `json:"rate"`
	OutAmount            float64 `json:"outAmount"`
	SlippageBpsSuggested int     `json:"slippageBpsSuggested"`
	ValidForSeconds      int     `json:"validForSeconds"`
}

type Quoter struct {
	store    store.Store
	referral *referral.Graph
	now      func() time.Time
}

func NewQuoter(s store.Store, graph *referral.Graph) *Quoter {
	return &Quoter{store: s, referral: graph, now: time.Now}
}

func (q *Quoter) WithClock(now func() time.Time) *Quoter {
	q.now = now
	return q
}

// QuoteSwap yields the deterministic pseudo-quote for the pair in the
// current minute bucket: a ±0.2 % basis around parity derived from the
// seeded hash.
func (q *Quoter) QuoteSwap(from, to string, amount float64) (*Quote, error) {
	if !supportedAssets[from] || !supportedAssets[to] {
		return nil, &errors.ValidationError{Field: "pair", Message: "only USDC and EURC are supported"}
	}
	if from == to {
		return nil, &errors.ValidationError{Field: "pair", Message: "source and destination assets must differ"}
	}
	if amount <= 0 {
		return nil, &errors.ValidationError{Field: "amount", Message: "must be positive"}
	}

	seed := fmt.Sprintf("%s-%s-%d", from, to, q.now().Unix()/60)
	basis := 1 + (mathx.DeterministicNumber(seed)-0.5)*0.004
	rate := mathx.Round2(basis)
	return &Quote{
		From:                 from,
		To:                   to,
		Amount:               mathx.Round2(amount),
		Rate:                 rate,
		OutAmount:            mathx.Round2(amount * rate),
		SlippageBpsSuggested: suggestedSlippageBps,
		ValidForSeconds:      QuoteValiditySeconds,
	}, nil
}

// ExecuteSwap quotes the pair, records the swap event, and unlocks referral
// activation for the user.
func (q *Quoter) ExecuteSwap(userID, from, to string, amount float64) (*store.SwapEvent, error) {
	if _, err := q.store.GetOrCreateUser(userID, ""); err != nil {
		return nil, &errors.StorageError{Operation: "load user", Err: err}
	}
	quote, err := q.QuoteSwap(from, to, amount)
	if err != nil {
		return nil, err
	}

	event := &store.SwapEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		FromAsset: from,
		ToAsset:   to,
		Amount:    quote.Amount,
		Rate:      quote.Rate,
		OutAmount: quote.OutAmount,
		CreatedAt: q.now().UTC(),
	}
	if err := q.store.InsertSwapEvent(event); err != nil {
		return nil, &errors.StorageError{Operation: "insert swap event", Err: err}
	}
	if err := q.referral.EnableRewardsForUser(userID); err != nil {
		return nil, err
	}
	logger.Info("Swap executed: user=%s %s->%s amount=%.2f rate=%.2f", userID, from, to, quote.Amount, quote.Rate)
	return event, nil
}

// History lists the user's swaps, newest first.
func (q *Quoter) History(userID string) ([]store.SwapEvent, error) {
	events, err := q.store.ListSwapEvents(userID)
	if err != nil {
		return nil, &errors.StorageError{Operation: "list swap events", Err: err}
	}
	return events, nil
}
