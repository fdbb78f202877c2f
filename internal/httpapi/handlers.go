package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skobkin/rcp2bridge/internal/actions"
	"github.com/skobkin/rcp2bridge/internal/camera"
	"github.com/skobkin/rcp2bridge/internal/feedback"
)

const maxHistoryLimit = 1000

type handlers struct {
	logger *slog.Logger
	deps   Deps
}

func newHandlers(logger *slog.Logger, deps Deps) *handlers {
	return &handlers{logger: logger, deps: deps}
}

type statusResponse struct {
	State     string    `json:"state"`
	Error     string    `json:"error,omitempty"`
	Transport string    `json:"transport,omitempty"`
	Target    string    `json:"target,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type feedbackRequest struct {
	Variable string `json:"variable"`
	Subpath  string `json:"subpath"`
}

type feedbackListResponse struct {
	Definitions   []feedback.Definition   `json:"definitions"`
	Subscriptions []feedback.Subscription `json:"subscriptions"`
}

func (h *handlers) status(c *gin.Context) {
	st := h.deps.Backend.CurrentConnStatus()
	c.JSON(http.StatusOK, statusResponse{
		State:     string(st.State),
		Error:     st.Err,
		Transport: st.TransportName,
		Target:    st.Target,
		Timestamp: st.Timestamp,
	})
}

func (h *handlers) listVariables(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Variables.Snapshot())
}

func (h *handlers) getVariable(c *gin.Context) {
	v, ok := h.deps.Variables.Get(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, "variable not found")

		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *handlers) listActions(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Actions.Definitions())
}

func (h *handlers) runAction(c *gin.Context) {
	options := actions.Options{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&options); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())

			return
		}
	}

	err := h.deps.Actions.Run(c.Param("id"), options)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
	case errors.Is(err, actions.ErrUnknownAction):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, actions.ErrInvalidOption):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, camera.ErrNotConnected), errors.Is(err, camera.ErrOutboxFull):
		respondError(c, http.StatusServiceUnavailable, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, err.Error())
	}
}

func (h *handlers) listFeedbacks(c *gin.Context) {
	c.JSON(http.StatusOK, feedbackListResponse{
		Definitions:   feedback.Definitions(),
		Subscriptions: h.deps.Feedback.Subscriptions(),
	})
}

func (h *handlers) subscribeFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())

		return
	}
	sub := feedback.Subscription{ID: c.Param("id"), Variable: req.Variable, Subpath: req.Subpath}
	if err := h.deps.Feedback.Subscribe(sub); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())

		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *handlers) unsubscribeFeedback(c *gin.Context) {
	if !h.deps.Feedback.Unsubscribe(c.Param("id")) {
		respondError(c, http.StatusNotFound, "feedback not found")

		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Backend.CurrentConfig())
}

// updateConfig merges the request body over the current config, so partial documents work.
func (h *handlers) updateConfig(c *gin.Context) {
	cfg := h.deps.Backend.CurrentConfig()
	if err := c.ShouldBindJSON(&cfg); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())

		return
	}
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())

		return
	}
	if err := h.deps.Backend.SaveAndApplyConfig(cfg); err != nil {
		h.logger.Error("apply config", "error", err)
		respondError(c, http.StatusInternalServerError, err.Error())

		return
	}
	c.JSON(http.StatusOK, h.deps.Backend.CurrentConfig())
}

func (h *handlers) history(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			respondError(c, http.StatusBadRequest, "limit must be between 1 and 1000")

			return
		}
		limit = n
	}

	rows, err := h.deps.Backend.History(c.Request.Context(), c.Param("variable"), limit)
	if err != nil {
		h.logger.Error("load history", "variable", c.Param("variable"), "error", err)
		respondError(c, http.StatusInternalServerError, err.Error())

		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *handlers) clearHistory(c *gin.Context) {
	if err := h.deps.Backend.ClearHistory(c.Request.Context()); err != nil {
		h.logger.Error("clear history", "error", err)
		respondError(c, http.StatusInternalServerError, err.Error())

		return
	}
	c.Status(http.StatusNoContent)
}

func respondError(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg})
}
