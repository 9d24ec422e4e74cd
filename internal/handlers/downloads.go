package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"label-platform/internal/downloads"
	"label-platform/internal/middleware"
)

type DownloadService interface {
	Download(ctx context.Context, itemID int64, who downloads.Requester) (downloads.Grant, error)
	DownloadByToken(ctx context.Context, token string) (downloads.Grant, error)
}

type DownloadHandler struct {
	Downloads DownloadService
	Logger    *zap.Logger
}

func NewDownloadHandler(svc DownloadService, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{Downloads: svc, Logger: logger}
}

// Download counts one download and returns the grant. Guests prove
// ownership with order_number and email.
func (h *DownloadHandler) Download(c *gin.Context) {
	itemID, ok := pathID(c, "item_id")
	if !ok {
		return
	}

	grant, err := h.Downloads.Download(c.Request.Context(), itemID, downloads.Requester{
		UserID:      middleware.UserID(c),
		Admin:       middleware.IsAdmin(c),
		OrderNumber: c.Query("order_number"),
		Email:       c.Query("email"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

// ByToken counts one download and redirects to the file.
func (h *DownloadHandler) ByToken(c *gin.Context) {
	grant, err := h.Downloads.DownloadByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Redirect(http.StatusFound, grant.DownloadURL)
}
