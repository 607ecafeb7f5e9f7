// Package tasks is the fixed task catalog the points ledger runs against.
package tasks

type TaskType string

const (
	TypeDaily    TaskType = "daily"
	TypeSocial   TaskType = "social"
	TypeActivity TaskType = "activity"
)

// Definition describes one earnable task. Social tasks with a delay settle
// after SocialDelayHours; tasks with a cooldown reject repeats inside
// CooldownHours.
type Definition struct {
	Key              string   `json:"key"`
	Label            string   `json:"label"`
	Type             TaskType `json:"type"`
	Points           float64  `json:"points"`
	CooldownHours    int      `json:"cooldownHours,omitempty"`
	SocialDelayHours int      `json:"socialDelayHours,omitempty"`
}

var definitions = []Definition{
	{Key: "connect_wallet", Label: "Connect wallet", Type: TypeDaily, Points: 10, CooldownHours: 24},
	{Key: "first_deposit", Label: "Make first deposit", Type: TypeActivity, Points: 50},
	{Key: "complete_swap", Label: "Complete a swap", Type: TypeDaily, Points: 20, CooldownHours: 24},
	{Key: "daily_dashboard", Label: "Check dashboard daily", Type: TypeDaily, Points: 5, CooldownHours: 24},
	{Key: "follow_twitter", Label: "Follow on X", Type: TypeSocial, Points: 100, SocialDelayHours: 24},
	{Key: "retweet_announcement", Label: "Retweet announcement", Type: TypeSocial, Points: 50, SocialDelayHours: 24},
	{Key: "join_discord", Label: "Join Discord", Type: TypeSocial, Points: 100, SocialDelayHours: 12},
	{Key: "invite_friend", Label: "Invite a friend", Type: TypeSocial, Points: 200, SocialDelayHours: 24},
	{Key: "share_referral", Label: "Share referral link", Type: TypeSocial, Points: 50, SocialDelayHours: 12},
	{Key: "like_comment", Label: "Like + comment on post", Type: TypeSocial, Points: 25, SocialDelayHours: 12},
	{Key: "deposit_100", Label: "Deposit $100+", Type: TypeActivity, Points: 100},
	{Key: "deposit_1000", Label: "Deposit $1000+", Type: TypeActivity, Points: 500},
	{Key: "hold_7d", Label: "Hold for 7 days", Type: TypeActivity, Points: 150},
	{Key: "hold_30d", Label: "Hold for 30 days", Type: TypeActivity, Points: 500},
	{Key: "swaps_10", Label: "Complete 10 swaps", Type: TypeActivity, Points: 200},
	{Key: "swaps_50", Label: "Complete 50 swaps", Type: TypeActivity, Points: 1000},
}

var byKey = func() map[string]Definition {
	m := make(map[string]Definition, len(definitions))
	for _, def := range definitions {
		m[def.Key] = def
	}
	return m
}()

// SocialProofKeys are the task keys the quest engine counts as social proof.
var SocialProofKeys = []string{"follow_twitter", "retweet_announcement", "join_discord", "like_comment"}

// ReferralTaskKey is the task counted as a referral attempt by the risk
// engine's rolling window.
const ReferralTaskKey = "invite_friend"

// All returns the catalog in declaration order.
func All() []Definition {
	return definitions
}

// ByKey looks up a task definition.
func ByKey(key string) (Definition, bool) {
	def, ok := byKey[key]
	return def, ok
}
