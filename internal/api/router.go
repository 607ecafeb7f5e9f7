package api

import "github.com/gin-gonic/gin"

// SetupRouter registers every route on a gin engine.
func SetupRouter(h *Handler) *gin.Engine {
	r := gin.Default()
	r.Use(ErrorMiddleware())

	r.POST("/points/event", h.RecordPointEvent)

	r.POST("/referrals/apply", h.ApplyReferralCode)
	r.GET("/referrals/:userId/stats", h.GetReferralStats)

	r.GET("/vaults/:userId", h.GetVaults)
	r.POST("/vaults/deposit", h.DepositToVault)
	r.POST("/vaults/withdraw", h.WithdrawFromVault)

	r.GET("/swap/quote", h.QuoteSwap)
	r.POST("/swap/execute", h.ExecuteSwap)
	r.GET("/swaps/:userId/history", h.GetSwapHistory)

	r.GET("/quests/active/:userId", h.GetActiveQuests)
	r.POST("/quests/complete", h.CompleteQuest)

	r.POST("/nft/claim", h.ClaimMilestoneNft)
	r.GET("/nft/:userId/tiers", h.GetEligibleNftTiers)

	r.GET("/leaderboard", h.GetLeaderboard)

	r.POST("/admin/vaults/pause", h.SetVaultPause)
	r.GET("/system/state", h.GetSystemState)

	r.GET("/user/:userId/profile", h.GetUserProfile)
	r.GET("/user/:userId/summary", h.GetUserSummary)
	r.POST("/user/username", h.SetUsername)

	return r
}
