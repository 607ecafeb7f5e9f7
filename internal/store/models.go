package store

import "time"

type RiskFlag string

const (
	RiskNone    RiskFlag = "none"
	RiskReview  RiskFlag = "review"
	RiskBlocked RiskFlag = "blocked"
)

type PointStatus string

const (
	PointPending PointStatus = "pending"
	PointSettled PointStatus = "settled"
	PointBlocked PointStatus = "blocked"
)

type VaultAction string

const (
	VaultDeposit  VaultAction = "deposit"
	VaultWithdraw VaultAction = "withdraw"
)

type QuestStatus string

const (
	QuestInProgress QuestStatus = "in_progress"
	QuestCompleted  QuestStatus = "completed"
)

type User struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"createdAt"`
	WalletAddress string    `json:"walletAddress,omitempty"`
	Username      string    `json:"username,omitempty"`
	ReferralCode  string    `json:"referralCode"`
	ReferredBy    string    `json:"referredBy,omitempty"`
	PointsSettled float64   `json:"pointsSettled"`
	PointsPending float64   `json:"pointsPending"`
	RiskFlag      RiskFlag  `json:"riskFlag"`
}

type PointEvent struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	TaskKey   string                 `json:"taskKey"`
	Points    float64                `json:"points"`
	Status    PointStatus            `json:"status"`
	Reason    string                 `json:"reason,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	SettlesAt *time.Time             `json:"settlesAt,omitempty"`
}

type ReferralLink struct {
	ID               string     `json:"id"`
	ReferrerUserID   string     `json:"referrerUserId"`
	ReferredUserID   string     `json:"referredUserId"`
	CreatedAt        time.Time  `json:"createdAt"`
	RewardsEnabledAt *time.Time `json:"rewardsEnabledAt,omitempty"`
}

type ReferralReward struct {
	ID             string    `json:"id"`
	ReferrerUserID string    `json:"referrerUserId"`
	SourceUserID   string    `json:"sourceUserId"`
	SourceEventID  string    `json:"sourceEventId"`
	Points         float64   `json:"points"`
	CreatedAt      time.Time `json:"createdAt"`
}

type VaultPosition struct {
	UserID        string    `json:"userId"`
	VaultID       string    `json:"vaultId"`
	PrincipalUsd  float64   `json:"principalUsd"`
	EarnedUsd     float64   `json:"earnedUsd"`
	LastAccruedAt time.Time `json:"lastAccruedAt"`
}

type VaultEvent struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	VaultID   string      `json:"vaultId"`
	Action    VaultAction `json:"action"`
	Amount    float64     `json:"amount"`
	CreatedAt time.Time   `json:"createdAt"`
}

type SwapEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	FromAsset string    `json:"from"`
	ToAsset   string    `json:"to"`
	Amount    float64   `json:"amount"`
	Rate      float64   `json:"rate"`
	OutAmount float64   `json:"outAmount"`
	CreatedAt time.Time `json:"createdAt"`
}

type QuestRun struct {
	ID          string         `json:"id"`
	QuestID     string         `json:"questId"`
	UserID      string         `json:"userId"`
	Status      QuestStatus    `json:"status"`
	Progress    map[string]int `json:"progress"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type NftClaim struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Tier      string    `json:"tier"`
	TokenID   *int64    `json:"tokenId,omitempty"`
	ClaimedAt time.Time `json:"claimedAt"`
}

type AbuseFlag struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Signal    string    `json:"signal"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

// LeaderboardTotal is one user's aggregated settled points plus referral
// rewards within a ranking window.
type LeaderboardTotal struct {
	UserID string  `json:"userId"`
	Points float64 `json:"points"`
}

type LeaderboardRow struct {
	UserID string  `json:"userId"`
	Points float64 `json:"points"`
	Rank   int     `json:"rank"`
}

type LeaderboardSnapshot struct {
	ID         string           `json:"id"`
	Period     string           `json:"period"`
	CapturedAt time.Time        `json:"capturedAt"`
	Rows       []LeaderboardRow `json:"rows"`
}

type SystemCounts struct {
	Users       int  `json:"users"`
	Swaps       int  `json:"swaps"`
	PointEvents int  `json:"pointEvents"`
	AbuseFlags  int  `json:"abuseFlags"`
	Paused      bool `json:"paused"`
}
