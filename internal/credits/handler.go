package credits

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"textlens-backend/internal/shared/server/middleware"
	"textlens-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the credits service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches credit routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/credits", h.get)
}

// RegisterDevRoutes attaches dev-only credit routes.
func (h *Handler) RegisterDevRoutes(rg *gin.RouterGroup) {
	rg.POST("/credits/grant", h.grant)
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	account, err := h.Svc.Get(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch credits", nil)
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"balance":   account.Balance,
		"unlimited": account.Unlimited,
	})
}

func (h *Handler) grant(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	amount := 1
	if v := c.Query("amount"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			amount = parsed
		}
	}

	account, err := h.Svc.Grant(c.Request.Context(), userID, amount)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to grant credits", nil)
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"balance":   account.Balance,
		"unlimited": account.Unlimited,
	})
}
