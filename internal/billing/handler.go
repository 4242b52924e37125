package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"textlens-backend/internal/shared/server/middleware"
	"textlens-backend/internal/shared/server/respond"
)

const maxWebhookBody = 64 << 10

// Handler wires HTTP handlers to the billing service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches billing routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/billing/packs", h.packs)
	rg.POST("/billing/checkout", h.checkout)
	rg.POST("/billing/webhook", h.webhook)
}

func (h *Handler) packs(c *gin.Context) {
	out := make([]gin.H, 0)
	for _, pack := range h.Svc.Packs() {
		out = append(out, gin.H{
			"id":        pack.ID,
			"label":     pack.Label,
			"credits":   pack.Credits,
			"unlimited": pack.Unlocks,
		})
	}
	respond.JSON(c, http.StatusOK, out)
}

type checkoutRequest struct {
	PackID string `json:"packId"`
}

func (h *Handler) checkout(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if isGuest, ok := c.Get("isGuest"); ok {
		if guest, ok2 := isGuest.(bool); ok2 && guest {
			respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to purchase credits", nil)
			return
		}
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	url, err := h.Svc.CreateCheckout(c.Request.Context(), userID, req.PackID)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownPack):
			respond.Error(c, http.StatusBadRequest, "validation_error", "unknown credit pack", nil)
		case errors.Is(err, ErrNotConfigured):
			respond.Error(c, http.StatusServiceUnavailable, "billing_unavailable", "billing is not configured", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create checkout session", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{"checkoutUrl": url})
}

func (h *Handler) webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read payload", nil)
		return
	}

	err = h.Svc.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			respond.Error(c, http.StatusServiceUnavailable, "billing_unavailable", "billing is not configured", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "webhook_error", "webhook rejected", nil)
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{"received": true})
}
