package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"invitegate/internal/ledger"
	"invitegate/internal/service"
)

// Handler serves the operational HTTP surface: liveness and the manual
// refresh hook.
type Handler struct {
	refresher *service.Refresher
	ledger    *ledger.InviteLedger
	guildID   string
	started   time.Time
}

func NewHandler(refresher *service.Refresher, l *ledger.InviteLedger, guildID string) *Handler {
	return &Handler{
		refresher: refresher,
		ledger:    l,
		guildID:   guildID,
		started:   time.Now(),
	}
}

// Healthz reports process status, the watched guild and the ledger size.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"guild_id": h.guildID,
		"invites":  h.ledger.Len(),
		"uptime":   time.Since(h.started).Round(time.Second).String(),
	})
}

// Refresh re-pulls the invite snapshot on demand.
func (h *Handler) Refresh(c *gin.Context) {
	if err := h.refresher.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"invites": h.ledger.Len(),
	})
}
