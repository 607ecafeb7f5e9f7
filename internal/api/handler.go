package api

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lummalabs/lumma-core/internal/admin"
	"github.com/lummalabs/lumma-core/internal/chain"
	"github.com/lummalabs/lumma-core/internal/errors"
	"github.com/lummalabs/lumma-core/internal/leaderboard"
	"github.com/lummalabs/lumma-core/internal/ledger"
	"github.com/lummalabs/lumma-core/internal/nft"
	"github.com/lummalabs/lumma-core/internal/quest"
	"github.com/lummalabs/lumma-core/internal/referral"
	"github.com/lummalabs/lumma-core/internal/swap"
	"github.com/lummalabs/lumma-core/internal/users"
	"github.com/lummalabs/lumma-core/internal/vault"
)

// Handler wires the HTTP surface to the domain services.
type Handler struct {
	directory   *users.Directory
	ledger      *ledger.Ledger
	referrals   *referral.Graph
	vaults      *vault.Accrual
	swaps       *swap.Quoter
	milestones  *nft.Registry
	quests      *quest.Engine
	leaderboard *leaderboard.Aggregator
	admin       *admin.Admin
	intents     *chain.Builder
}

func NewHandler(
	directory *users.Directory,
	l *ledger.Ledger,
	referrals *referral.Graph,
	vaults *vault.Accrual,
	swaps *swap.Quoter,
	milestones *nft.Registry,
	quests *quest.Engine,
	agg *leaderboard.Aggregator,
	adm *admin.Admin,
	intents *chain.Builder,
) *Handler {
	return &Handler{
		directory:   directory,
		ledger:      l,
		referrals:   referrals,
		vaults:      vaults,
		swaps:       swaps,
		milestones:  milestones,
		quests:      quests,
		leaderboard: agg,
		admin:       adm,
		intents:     intents,
	}
}

type pointEventRequest struct {
	UserID   string                 `json:"userId" binding:"required"`
	TaskKey  string                 `json:"taskKey" binding:"required"`
	Metadata map[string]interface{} `json:"metadata"`
}

// RecordPointEvent handles the POST request for a task completion.
func (h *Handler) RecordPointEvent(c *gin.Context) {
	var req pointEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(&errors.ValidationError{Field: "body", Message: err.Error()})
		return
	}
	event, err := h.ledger.RecordEvent(req.UserID, req.TaskKey, req.Metadata)
	if err != nil {
		c.Error(err)
		return
	}
	summary, err := h.ledger.SummaryFor(req.UserID)
	if err != nil {
		c.Error(err)
		return
	}
	ok(c, gin.H{"event": event, "summary": summary})
}

type referralApplyRequest struct {
	UserID string `json:"userId" binding:"required"`
	Code   string `json:"code" binding:"required"`
}

// ApplyReferralCode handles the POST request binding a referred user.
func (h *Handler) ApplyReferralCode(c *gin.Context) {
	var req referralApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(&errors.ValidationError{Field: "body", Message: err.Error()})
		return
	}
	link, err := h.referrals.ApplyCode(req.UserID, req.Code)
	if err != nil {
		c.Error(err)
		return
	}
	ok(c, gin.H{"referrerUserId": link.ReferrerUserID})
}

// GetReferralStats handles the GET request for a referrer's stats.
func (h *Handler) GetReferralStats(c *gin.Context) {
	stats, err := h.referrals.StatsFor(c.Param("userId"))
	if err != nil {
		c.Error(err)
		return
	}
	ok(c, gin.H{"stats": stats})
}

// GetVaults handles the GET request for the vault views.
func (h *Handler) GetVaults(c *gin.Context) {
	views, err := h.vaults.Views(c.Param("userId"))
	if err != nil {
		c.Error(err)
		return
	}
	ok(c, gin.H{"vaults": views})
}

type vaultMutationRequest struct {
	UserID  string  `json:"userId" binding:"required"`
	VaultID string  `json:"vaultId" binding:"required"`
	Amount  float64 `json:"amount" binding:"required,gt=0"`
}

// DepositToVault handles the POST request for a vault deposit.
func (h *Handler) DepositToVault(c *gin.Context) {
	var req vaultMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(&errors.ValidationError{Field: "body", Message: err.Error()})
		return
	}
	position, err := h.vaults.Deposit(req.UserID, req.VaultID, req.Amount)
	if err != nil {
		c.Error(err)
		return
	}

	// Deposit-size milestones, each awarded at most once.
	if req.Amount >= 1000 {
		if _, err := h.ledger.RecordEventOnce(req.UserID, "deposit_1000", nil); err != nil {
			c.Error(err)
			return
		}
	} else if req.Amount >= 100 {
		if _, err := h.ledger.RecordEventOnce(req.UserID, "deposit_100", nil); err != nil {
			c.Error(err)
			return
		}
	}
	if _, err := h.ledger.RecordEventOnce(req.UserID, "first_deposit", nil); err != nil {
		c.Error(err)
		return
	}

	intent, err := h.intents.DepositIntent(req.VaultID, req.Amount)
	if err != nil {
		c.Error(err)
		return
	}
	ok(c, gin.H{"message": "deposit accepted", "position": position, "txIntent": intent})
}

// WithdrawFromVault handles the POST request for a vault withdrawal.
func (h *Handler) WithdrawFromVault(c *gin.Context) {
	var req vaultMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(&errors.ValidationError{Field: "body", Message: err.Error()})
		return
	}
	position, err := h.vaults.Withdraw(req.UserID, req.VaultID, req.Amount)
	if err != nil {
		c.Error(err)
		return
	}
	intent, err := h.intents.WithdrawIntent(req.VaultID, req.Amount)
	if err != nil {
		c.Error(err)
		return
	}
	ok(c, gin.H{"message": "withdrawal accepted", "position": position, "txIntent": intent})
}

// QuoteSwap handles the GET request for an advisory swap quote.
func (h *Handler) QuoteSwap(c *gin.Context) {
	amount, err := strconv.ParseFloat(c.DefaultQuery("amount", "0"), 64)
	if err != nil || amount <= 0 {
		c.Error(&errors.ValidationError{Field: "amount", Message: "must be a positive number"})
		return
	}
	quote, qerr := h.swaps.QuoteSwap(c.DefaultQuery("from", "USDC"), c.DefaultQuery("to", "EURC"), amount)
	if qerr != nil {
		c.Error(qerr)
		return
	}
	ok(c, gin.H{"quote": quote})
}

type swapExecuteRequest struct {
	UserID      string  `json:"userId" binding:"required"`
	From        string  `json:"from" binding:"required"`
	To          string  `json:"to" binding:"required"`
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	SlippageBps int     `json:"slippageBps"`
}

// ExecuteSwap handles the POST request recording a swap.
func (h *Handler) ExecuteSwap(c *gin.Context) {
	var req swapExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(&errors.ValidationError{Field: "body", Message: err.Error()})
		return
	}
	if req.SlippageBps <= 0 || req.SlippageBps > 500 {
		req.SlippageBps = 30
	}
	event, err := h.swaps.ExecuteSwap(req.UserID, req.From, req.To, req.Amount)
	if err != nil {
		c.Error(err)
		return
	}

	// The daily swap task may be on cooldown; that never fails the swap.
	if _, err := h.ledger.RecordEvent(req.UserID, "complete_swap", nil); err != nil {
		if _, isConflict := err.(*errors.ConflictError); !isConflict {
			c.Error(err)
			return
		}
	}
	summary, err := h.ledger.SummaryFor(req.UserID)
	if err != nil {
		c.Error(err)
		return
	}
	if summary.Swaps >= 50 {
		if _, err := h.ledger.RecordEventOnce(req.UserID, "swaps_50", nil); err != nil {
			c.Error(err)
			return
		}
	} else if summary.Swaps >= 10 {
		if _, err := h.ledger.RecordEventOnce(req.UserID, "swaps_10", nil); err != nil {
			c.Error(err)
			return
		}
	}

	intent, err := h.intents.SwapIntent(event.FromAsset, event.ToAsset, event.Amount, event.OutAmount, req.SlippageBps)
	if err != nil {
		c.Error(err)
		return
	}
	history, err := h.swaps.History(req.UserID)
	if err != nil {
		c.Error(err)
		return
	}
	ok(c, gin.H{
		"swap":                  event,
		"txIntent":              intent,
		"history":               history,
		"swapMilestoneProgress": fmt.Sprintf("%d/250", summary.Swaps),
	})
}

// GetSwapHistory handles the GET request for a user's swap history.
func (h *Handler) GetSwapHistory(c *gin.Context) {
	history, err := h.swaps.History(c.Param("userId"))
	if err != nil {
		c.Error(err)
		return
	}
	ok(c, gin.H{"history": history})
}

// GetActiveQuests handles the GET request for quest progress.
func (h *Handler) GetActiveQuests(c *gin.Context) {
	views, err := h.quests.ActiveQuests(c.Param("userId"))
	if err != nil {
		c.Error(err)
		return
	}
	ok(c, gin.H{"quests": views})
}

type questCompleteRequest struct {
	UserID  string `json:"userId" binding:"required"`
	QuestID string `json:"questId" binding:"required"`
}

// CompleteQuest handles the POST request finishing a quest.
func (h *Handler) CompleteQuest(c *gin.Context) {
	var req questCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(&errors.ValidationError{Field: "body", Message: err.Error()})
		return
	}
	run, err := h.quests.Complete(req.UserID, req.QuestID)
	if err != nil {
		c.Error(err)
		return
	}
	ok(c, gin.H{"run": run})
}

type nftClaimRequest struct {
	UserID string `json:"userId" binding:"required"`
	Tier   string `json:"tier" binding:"required"`
}

// ClaimMilestoneNft handles the POST request claiming a milestone tier.
func (h *Handler) ClaimMilestoneNft(c *gin.Context) {
	var req nftClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(&errors.ValidationError{Field: "body", Message: err.Error()})
		return
	}
	claim, err := h.milestones.Claim(req.UserID, req.Tier)
	if err != nil {
		c.Error(err)
		return
	}
	user, err := h.directory.Profile(req.UserID, "")
	if err != nil {
		c.Error(err)
		return
	}
	intent, err := h.intents.MintIntent(user.WalletAddress, claim.Tier)
	if err != nil {
		c.Error(err)
		return
	}
	eligibility, err := h.milestones.EligibleTiers(req.UserID)
	if err != nil {
		c.Error(err)
		return
	}
	ok(c, gin.H{"claim": claim, "txIntent": intent, "eligibility": eligibility})
}

// GetEligibleNftTiers handles the GET request for claim eligibility.
func (h *Handler) GetEligibleNftTiers(c *gin.Context) {
	eligibility, err := h.milestones.EligibleTiers(c.Param("userId"))
	if err != nil {
		c.Error(err)
		return
	}
	ok(c, gin.H{"eligibility": eligibility})
}

// GetLeaderboard handles the GET request for a ranking window.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	period, err := leaderboard.ParsePeriod(c.DefaultQuery("period", "all_time"))
	if err != nil {
		c.Error(err)
		return
	}
	rows, err := h.leaderboard.Rank(period)
	if err != nil {
		c.Error(err)
		return
	}
	ok(c, gin.H{"period": period, "leaderboard": rows})
}

type pauseRequest struct {
	Paused *bool `json:"paused" binding:"required"`
}

// SetVaultPause handles the POST request flipping the global pause flag.
func (h *Handler) SetVaultPause(c *gin.Context) {
	var req pauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(&errors.ValidationError{Field: "body", Message: err.Error()})
		return
	}
	paused, err := h.admin.SetVaultPause(*req.Paused, c.GetHeader("x-admin-token"))
	if err != nil {
		c.Error(err)
		return
	}
	state, err := h.admin.SystemState()
	if err != nil {
		c.Error(err)
		return
	}
	ok(c, gin.H{"paused": paused, "system": state})
}

// GetSystemState handles the GET request for the global counters.
func (h *Handler) GetSystemState(c *gin.Context) {
	state, err := h.admin.SystemState()
	if err != nil {
		c.Error(err)
		return
	}
	ok(c, gin.H{"system": state})
}

// GetUserProfile handles the GET request for a user profile.
func (h *Handler) GetUserProfile(c *gin.Context) {
	user, err := h.directory.Profile(c.Param("userId"), c.Query("walletAddress"))
	if err != nil {
		c.Error(err)
		return
	}
	ok(c, gin.H{"user": user})
}

// GetUserSummary handles the GET request for a user's ledger summary.
func (h *Handler) GetUserSummary(c *gin.Context) {
	summary, err := h.ledger.SummaryFor(c.Param("userId"))
	if err != nil {
		c.Error(err)
		return
	}
	ok(c, gin.H{"summary": summary})
}

type usernameRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Username string `json:"username" binding:"required"`
}

// SetUsername handles the POST request binding a username.
func (h *Handler) SetUsername(c *gin.Context) {
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(&errors.ValidationError{Field: "body", Message: err.Error()})
		return
	}
	user, err := h.directory.SetUsername(req.UserID, req.Username)
	if err != nil {
		c.Error(err)
		return
	}
	ok(c, gin.H{"user": user})
}
