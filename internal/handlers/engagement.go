package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"label-platform/internal/middleware"
	"label-platform/internal/models"
	"label-platform/internal/store"
)

type RatingStore interface {
	List(ctx context.Context, q store.ListQuery) ([]models.Rating, error)
	Rate(ctx context.Context, userID int64, targetType string, targetID int64, rating int) (models.Rating, error)
	Summary(ctx context.Context, targetType string, targetID int64) (models.RatingSummary, error)
}

type VoteStore interface {
	List(ctx context.Context, q store.ListQuery) ([]models.Vote, error)
	Cast(ctx context.Context, userID int64, targetType string, targetID int64, value int) (models.Vote, error)
	Summary(ctx context.Context, targetType string, targetID int64) (models.VoteSummary, error)
}

// EngagementHandler serves ratings and votes. Each user holds at most one
// of each per target; posting again replaces it.
type EngagementHandler struct {
	Ratings RatingStore
	Votes   VoteStore
	Logger  *zap.Logger
}

func NewEngagementHandler(ratings RatingStore, votes VoteStore, logger *zap.Logger) *EngagementHandler {
	return &EngagementHandler{Ratings: ratings, Votes: votes, Logger: logger}
}

type Target struct {
	TargetType string `json:"target_type" form:"target_type" binding:"required,oneof=artist post product video media"`
	TargetID   int64  `json:"target_id" form:"target_id" binding:"required,gt=0"`
}

type RateRequest struct {
	Target
	Rating int `json:"rating" binding:"required,min=1,max=5"`
}

type VoteRequest struct {
	Target
	Value int `json:"value" binding:"required,oneof=-1 1"`
}

func (h *EngagementHandler) ListRatings(c *gin.Context) {
	rows, err := h.Ratings.List(c.Request.Context(), listQuery(c, "target_type", "target_id", "user_id"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	if rows == nil {
		rows = []models.Rating{}
	}
	c.JSON(http.StatusOK, rows)
}

func (h *EngagementHandler) Rate(c *gin.Context) {
	var req RateRequest
	if !bindJSON(c, &req) {
		return
	}

	rating, err := h.Ratings.Rate(c.Request.Context(), *middleware.UserID(c), req.TargetType, req.TargetID, req.Rating)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, rating)
}

func (h *EngagementHandler) RatingSummary(c *gin.Context) {
	var t Target
	if !bindQuery(c, &t) {
		return
	}

	summary, err := h.Ratings.Summary(c.Request.Context(), t.TargetType, t.TargetID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *EngagementHandler) ListVotes(c *gin.Context) {
	rows, err := h.Votes.List(c.Request.Context(), listQuery(c, "target_type", "target_id", "user_id"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	if rows == nil {
		rows = []models.Vote{}
	}
	c.JSON(http.StatusOK, rows)
}

func (h *EngagementHandler) Vote(c *gin.Context) {
	var req VoteRequest
	if !bindJSON(c, &req) {
		return
	}

	vote, err := h.Votes.Cast(c.Request.Context(), *middleware.UserID(c), req.TargetType, req.TargetID, req.Value)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, vote)
}

func (h *EngagementHandler) VoteSummary(c *gin.Context) {
	var t Target
	if !bindQuery(c, &t) {
		return
	}

	summary, err := h.Votes.Summary(c.Request.Context(), t.TargetType, t.TargetID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
