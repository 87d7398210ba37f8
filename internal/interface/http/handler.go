package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/horizon/internal/domain/auditlog"
	"github.com/yanqian/horizon/internal/domain/dashboard"
	"github.com/yanqian/horizon/internal/domain/session"
	"github.com/yanqian/horizon/internal/domain/sunreport"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	sessionSvc session.Service
	reportSvc  sunreport.Service
	auditSvc   auditlog.Service
	logger     *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(sessionSvc session.Service, reportSvc sunreport.Service, auditSvc auditlog.Service, logger *slog.Logger) *Handler {
	return &Handler{
		sessionSvc: sessionSvc,
		reportSvc:  reportSvc,
		auditSvc:   auditSvc,
		logger:     logger.With("component", "http.handler"),
	}
}

type positionRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

type positionErrorRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type phaseRequest struct {
	Phase string `json:"phase" binding:"required"`
}

type reportRequest struct {
	Location string   `json:"location"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Date     string   `json:"date"`
}

// Health is the liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateSession starts a new browser session on the hero screen.
func (h *Handler) CreateSession(c *gin.Context) {
	snap, err := h.sessionSvc.Create(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dashboard.BuildView(snap))
}

// GetSession returns the current view of a session.
func (h *Handler) GetSession(c *gin.Context) {
	snap, err := h.sessionSvc.Get(c.Request.Context(), c.Param("id"))
	h.respondView(c, snap, err)
}

// Search submits the search form. The call returns once the analysis has
// finished; a failed analysis is reported through the ERROR view.
func (h *Handler) Search(c *gin.Context) {
	var req session.SearchInput
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_input", errMessage(err), err))
		return
	}
	snap, err := h.sessionSvc.Search(c.Request.Context(), c.Param("id"), req)
	h.respondView(c, snap, err)
}

// ReportPosition receives the browser's coordinates.
func (h *Handler) ReportPosition(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_input", "lat and lng are required", err))
		return
	}
	coords := session.Coordinates{Lat: *req.Lat, Lng: *req.Lng}
	snap, err := h.sessionSvc.ReportPosition(c.Request.Context(), c.Param("id"), coords)
	h.respondView(c, snap, err)
}

// ReportPositionError receives a browser geolocation failure.
func (h *Handler) ReportPositionError(c *gin.Context) {
	var req positionErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_input", "reason is required", err))
		return
	}
	reason := session.PositionFailure(strings.ToLower(strings.TrimSpace(req.Reason)))
	snap, err := h.sessionSvc.ReportPositionFailure(c.Request.Context(), c.Param("id"), reason)
	h.respondView(c, snap, err)
}

// Cancel abandons locating or the running analysis.
func (h *Handler) Cancel(c *gin.Context) {
	snap, err := h.sessionSvc.Cancel(c.Request.Context(), c.Param("id"))
	h.respondView(c, snap, err)
}

// Reset returns the session to the hero screen.
func (h *Handler) Reset(c *gin.Context) {
	snap, err := h.sessionSvc.Reset(c.Request.Context(), c.Param("id"))
	h.respondView(c, snap, err)
}

// SelectPhase toggles between the sunrise and sunset tabs.
func (h *Handler) SelectPhase(c *gin.Context) {
	var req phaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_input", "phase is required", err))
		return
	}
	phase := session.Phase(strings.ToLower(strings.TrimSpace(req.Phase)))
	snap, err := h.sessionSvc.SelectPhase(c.Request.Context(), c.Param("id"), phase)
	h.respondView(c, snap, err)
}

// CreateReport runs a single stateless analysis.
func (h *Handler) CreateReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_input", errMessage(err), err))
		return
	}

	var loc sunreport.LocationInput
	switch {
	case req.Lat != nil && req.Lng != nil:
		loc = sunreport.Coords(*req.Lat, *req.Lng)
	case req.Lat != nil || req.Lng != nil:
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_input", "lat and lng must be provided together", nil))
		return
	default:
		loc = sunreport.Text(req.Location)
	}

	report, err := h.reportSvc.Analyze(c.Request.Context(), sunreport.Request{Location: loc, Date: req.Date})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListAnalyses returns the most recent audit entries.
func (h *Handler) ListAnalyses(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	entries, err := h.auditSvc.Recent(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": entries})
}

// ExportAnalyses streams the audit log as CSV.
func (h *Handler) ExportAnalyses(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.auditSvc.ExportCSV(c.Request.Context(), &buf, limit); err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="analyses.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handler) respondView(c *gin.Context, snap session.Snapshot, err error) {
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard.BuildView(snap))
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_input", "limit must be a non-negative integer", err))
		return 0, false
	}
	return limit, true
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
