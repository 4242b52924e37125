package analysis

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"textlens-backend/internal/access"
	"textlens-backend/internal/broadcast"
	"textlens-backend/internal/shared/server/middleware"
	"textlens-backend/internal/shared/server/respond"
	"textlens-backend/internal/shared/telemetry"
)

const (
	// subscriberBuffer absorbs bursts of stream events while the transport
	// catches up. A subscriber that overflows it is disconnected.
	subscriberBuffer = 256

	wsWriteWait = 10 * time.Second
	wsPingEvery = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler wires HTTP handlers to the analysis service.
type Handler struct {
	Svc      *Service
	Registry *broadcast.Registry
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, registry *broadcast.Registry) *Handler {
	return &Handler{Svc: svc, Registry: registry}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/analyses/kinds", h.kinds)
	rg.POST("/analyses", h.create)
	rg.GET("/analyses", h.list)
	rg.GET("/analyses/:id", h.get)
	rg.DELETE("/analyses/:id", h.delete)
	rg.POST("/analyses/:id/stop", h.stop)
	rg.POST("/analyses/:id/save", h.save)
	rg.GET("/analyses/:id/stream", h.stream)
	rg.GET("/analyses/:id/ws", h.streamWS)
}

func (h *Handler) kinds(c *gin.Context) {
	out := make([]gin.H, 0, len(Kinds()))
	for _, k := range Kinds() {
		out = append(out, gin.H{
			"id":        k.ID,
			"questions": len(k.Questions),
			"batches":   len(Batches(k.Questions)),
		})
	}
	respond.JSON(c, http.StatusOK, out)
}

type createRequest struct {
	Kind       string `json:"kind"`
	Text       string `json:"text"`
	DocumentID string `json:"documentId"`
	Context    string `json:"context"`
	Provider   string `json:"provider"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	job, err := h.Svc.Create(c.Request.Context(), CreateInput{
		UserID:     middleware.UserIDFromContext(c),
		Kind:       req.Kind,
		Text:       req.Text,
		DocumentID: req.DocumentID,
		Context:    req.Context,
		Provider:   req.Provider,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownKind):
			respond.Error(c, http.StatusBadRequest, "validation_error", "unknown analysis kind", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create analysis", nil)
		}
		return
	}

	respond.JSON(c, http.StatusAccepted, gin.H{
		"analysisId": job.ID,
		"status":     job.Status,
	})
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 50 {
		limit = 50
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	jobs, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	out := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, gin.H{
			"analysisId": job.ID,
			"kind":       job.Kind,
			"status":     job.Status,
			"saved":      job.Saved,
			"createdAt":  job.CreatedAt,
		})
	}
	respond.JSON(c, http.StatusOK, out)
}

func (h *Handler) get(c *gin.Context) {
	job, ok := h.ownedJob(c)
	if !ok {
		return
	}

	userID := middleware.UserIDFromContext(c)
	tier := h.Svc.ViewerTier(c.Request.Context(), userID, job.Kind)
	if tier == access.TierPartial {
		job.Results = previewResults(job.Results)
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"analysisId": job.ID,
		"kind":       job.Kind,
		"provider":   job.Provider,
		"status":     job.Status,
		"results":    job.Results,
		"saved":      job.Saved,
		"access":     string(tier),
		"createdAt":  job.CreatedAt,
		"updatedAt":  job.UpdatedAt,
	})
}

func (h *Handler) delete(c *gin.Context) {
	job, ok := h.ownedJob(c)
	if !ok {
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), job.ID); err != nil {
		switch {
		case errors.Is(err, ErrSavedJob):
			respond.Error(c, http.StatusConflict, "conflict", "saved analyses cannot be deleted", nil)
		default:
			h.jobError(c, err)
		}
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) stop(c *gin.Context) {
	job, ok := h.ownedJob(c)
	if !ok {
		return
	}
	// Stop is idempotent: stopping a finished job is a no-op.
	h.Svc.Stop(job.ID)
	respond.JSON(c, http.StatusOK, gin.H{"stopped": true})
}

func (h *Handler) save(c *gin.Context) {
	job, ok := h.ownedJob(c)
	if !ok {
		return
	}
	if err := h.Svc.Save(c.Request.Context(), job.ID); err != nil {
		h.jobError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"saved": true})
}

// stream delivers job events over Server-Sent Events. The connection closes
// after a terminal event or when the client goes away.
func (h *Handler) stream(c *gin.Context) {
	job, ok := h.ownedJob(c)
	if !ok {
		return
	}
	jobID := job.ID

	events, lost, sub := h.subscribe(jobID)
	defer h.Registry.Unsubscribe(sub)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-lost:
			return
		case event := <-events:
			c.SSEvent("message", event)
			c.Writer.Flush()
			if terminal(event) {
				return
			}
		}
	}
}

// streamWS delivers job events over a websocket.
func (h *Handler) streamWS(c *gin.Context) {
	job, ok := h.ownedJob(c)
	if !ok {
		return
	}
	jobID := job.ID

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		telemetry.Warn("analysis.ws_upgrade_failed", map[string]any{
			"analysis_id": jobID,
			"error":       err.Error(),
		})
		return
	}
	defer conn.Close()

	events, lost, sub := h.subscribe(jobID)
	defer h.Registry.Unsubscribe(sub)

	// Drain the reader so close frames and pongs are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingEvery)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-lost:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "event stream overflow"))
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event := <-events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
			if terminal(event) {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}
}

// subscribe bridges the registry callback into a buffered channel for the
// transport loops. A client that falls subscriberBuffer events behind is
// treated as dead: lost is closed and the transport disconnects, rather than
// silently dropping events the terminal one could be among.
func (h *Handler) subscribe(jobID string) (chan broadcast.Event, chan struct{}, *broadcast.Subscription) {
	events := make(chan broadcast.Event, subscriberBuffer)
	lost := make(chan struct{})
	var once sync.Once
	sub := h.Registry.Subscribe(jobID, func(event broadcast.Event) {
		select {
		case events <- event:
		default:
			once.Do(func() {
				telemetry.Warn("analysis.subscriber_overflow", map[string]any{
					"analysis_id": jobID,
					"event":       event.EventType(),
				})
				close(lost)
			})
		}
	})
	return events, lost, sub
}

// ownedJob loads the :id job and enforces ownership. Jobs with an owner are
// visible only to that owner; jobs created without one are reachable by anyone
// holding their id. A foreign job answers 404 so ids are not probeable.
func (h *Handler) ownedJob(c *gin.Context) (Job, bool) {
	job, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.jobError(c, err)
		return Job{}, false
	}
	if job.UserID != "" && job.UserID != middleware.UserIDFromContext(c) {
		respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		return Job{}, false
	}
	return job, true
}

func (h *Handler) jobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "analysis operation failed", nil)
	}
}

func terminal(event broadcast.Event) bool {
	switch event.EventType() {
	case "complete", "stopped", "error":
		return true
	}
	return false
}

// previewResults truncates the stored summary and batch responses for viewers
// without full access.
func previewResults(results map[string]any) map[string]any {
	if results == nil {
		return nil
	}
	out := make(map[string]any, len(results))
	for k, v := range results {
		out[k] = v
	}
	if summary, ok := out["summary"].(string); ok {
		out["summary"] = access.TruncatePreview(summary, access.TierPartial)
	}
	switch batches := out["batches"].(type) {
	case []string:
		truncated := make([]string, len(batches))
		for i, b := range batches {
			truncated[i] = access.TruncatePreview(b, access.TierPartial)
		}
		out["batches"] = truncated
	case []any:
		truncated := make([]any, len(batches))
		for i, b := range batches {
			if s, ok := b.(string); ok {
				truncated[i] = access.TruncatePreview(s, access.TierPartial)
			} else {
				truncated[i] = b
			}
		}
		out["batches"] = truncated
	}
	out["truncated"] = true
	return out
}
