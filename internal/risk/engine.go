// Package risk scores behavioral signals into a risk tier. Assess is a pure
// function: the same signals always produce the same assessment, so every
// gating decision in the ledger is independently reproducible.
package risk

import "github.com/lummalabs/lumma-core/internal/store"

const (
	blockThreshold  = 70
	reviewThreshold = 35
)

// Signals are the rolling behavioral inputs computed by the caller.
type Signals struct {
	WalletAgeDays              float64
	EventsInLastHour           int
	ReferralAttemptsInLastHour int
	RepeatedFundingSource      bool
}

// Assessment is the scoring verdict.
type Assessment struct {
	Score    int            `json:"score"`
	RiskFlag store.RiskFlag `json:"riskFlag"`
	Reasons  []string       `json:"reasons"`
}

// Assess applies the additive scoring table and maps the total to a tier.
func Assess(signals Signals) Assessment {
	score := 0
	var reasons []string

	if signals.WalletAgeDays < 2 {
		score += 35
		reasons = append(reasons, "wallet_age_below_2d")
	}
	if signals.EventsInLastHour > 20 {
		score += 30
		reasons = append(reasons, "event_burst_detected")
	} else if signals.EventsInLastHour > 10 {
		score += 15
		reasons = append(reasons, "event_rate_high")
	}
	if signals.ReferralAttemptsInLastHour > 3 {
		score += 25
		reasons = append(reasons, "rapid_referral_attempts")
	}
	if signals.RepeatedFundingSource {
		score += 30
		reasons = append(reasons, "shared_funding_source")
	}

	flag := store.RiskNone
	switch {
	case score >= blockThreshold:
		flag = store.RiskBlocked
	case score >= reviewThreshold:
		flag = store.RiskReview
	}
	return Assessment{Score: score, RiskFlag: flag, Reasons: reasons}
}
