package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"phalerts.app/server/internal/conduit"
	"phalerts.app/server/internal/http/dto"
	"phalerts.app/server/internal/metrics"
	"phalerts.app/server/internal/model"
	"phalerts.app/server/internal/service"
)

// Nginx convention for a client that went away mid-request.
const statusClientClosedRequest = 499

// Query args beyond these are rejected rather than ignored.
var allowedArgs = map[string]bool{
	"project": true,
	"phid":    true,
	"title":   true,
}

// AlertsHandler accepts Alertmanager webhook notifications and hands
// them to the reconciler.
type AlertsHandler struct {
	reconciler service.Reconciler
	logger     *slog.Logger
}

func NewAlertsHandler(reconciler service.Reconciler, logger *slog.Logger) *AlertsHandler {
	return &AlertsHandler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// HandleNotification processes POST /alerts. Project scoping comes
// from repeatable "project" (names) and "phid" (identifiers) query
// args; "title" overrides the configured title template.
func (h *AlertsHandler) HandleNotification(c *gin.Context) {
	start := time.Now()
	defer func() { metrics.RequestLatency.Observe(time.Since(start).Seconds()) }()

	ctx := c.Request.Context()

	for arg := range c.Request.URL.Query() {
		if !allowedArgs[arg] {
			metrics.CountError(metrics.ReasonInput)
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unexpected query arg %q", arg)})
			return
		}
	}

	var n model.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		metrics.CountError(metrics.ReasonInput)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification payload"})
		return
	}
	if n.Version != model.SupportedVersion {
		metrics.CountError(metrics.ReasonInput)
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported message version %q", n.Version)})
		return
	}

	var refs []model.ProjectRef
	for _, name := range c.QueryArray("project") {
		refs = append(refs, model.ProjectRef{Name: name})
	}
	for _, phid := range c.QueryArray("phid") {
		refs = append(refs, model.ProjectRef{PHID: phid})
	}

	result, err := h.reconciler.Reconcile(ctx, &n, refs, c.Query("title"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.logger.InfoContext(ctx, "notification reconciled",
		"group_key", n.GroupKey, "outcome", result.Outcome, "task", result.TaskID)

	c.JSON(http.StatusOK, dto.ReconcileResponse{
		Status:   "ok",
		Outcome:  string(result.Outcome),
		Title:    result.Title,
		TaskPHID: result.TaskPHID,
		TaskID:   result.TaskID,
	})
}

func (h *AlertsHandler) writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	var renderErr *service.RenderError
	var rateErr *conduit.RateLimitError
	var authErr *conduit.AuthError

	switch {
	case errors.As(err, &renderErr):
		metrics.CountError(metrics.ReasonInput)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrProjectNotFound):
		metrics.CountError(metrics.ReasonProjectNotFound)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPaginationLimit):
		metrics.CountError(metrics.ReasonPaginationLimit)
		h.logger.ErrorContext(ctx, "search truncated before confirming uniqueness", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	case errors.As(err, &rateErr):
		metrics.CountError(metrics.ReasonRateLimited)
		c.Header("Retry-After", strconv.Itoa(int(rateErr.RetryAfter.Seconds())))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.As(err, &authErr):
		metrics.CountError(metrics.ReasonAuth)
		h.logger.ErrorContext(ctx, "conduit credential rejected", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "tracker authentication failed"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		metrics.CountError(metrics.ReasonCancelled)
		c.Status(statusClientClosedRequest)
	default:
		metrics.CountError(metrics.ReasonRemote)
		h.logger.ErrorContext(ctx, "reconciliation failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
