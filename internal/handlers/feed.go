package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type FeedBuilder interface {
	RSS(ctx context.Context) (string, error)
}

type FeedHandler struct {
	Feed   FeedBuilder
	Logger *zap.Logger
}

func NewFeedHandler(feed FeedBuilder, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{Feed: feed, Logger: logger}
}

func (h *FeedHandler) RSS(c *gin.Context) {
	xml, err := h.Feed.RSS(c.Request.Context())
	if err != nil {
		h.Logger.Error("Failed to build RSS feed", zap.Error(err))
		c.String(http.StatusInternalServerError, "feed unavailable")
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(xml))
}
