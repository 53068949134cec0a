package monitor

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vigil-hq/vigil/internal/validation"
)

// CandidateDirectory verifies that a candidate exists before a session
// is started for them.
type CandidateDirectory interface {
	Exists(ctx context.Context, candidateID string) (bool, error)
}

// Handler provides HTTP endpoints for session monitoring.
type Handler struct {
	service    *Service
	analyzer   FrameAnalyzer
	candidates CandidateDirectory
}

// NewHandler creates a new monitoring handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// WithAnalyzer adds a server-side face analyzer so clients may submit
// raw frames instead of pre-computed face counts.
func (h *Handler) WithAnalyzer(a FrameAnalyzer) *Handler {
	h.analyzer = a
	return h
}

// WithCandidates adds candidate existence checks on session start.
func (h *Handler) WithCandidates(cd CandidateDirectory) *Handler {
	h.candidates = cd
	return h
}

// RegisterRoutes sets up session monitoring routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	sessions := r.Group("/sessions")
	sessions.POST("", h.StartSession)

	byID := sessions.Group("/:id")
	byID.Use(validation.SessionParamMiddleware())
	byID.GET("", h.GetSession)
	byID.POST("/frames", h.SubmitFrame)
	byID.POST("/audio", h.SubmitAudio)
	byID.POST("/interrupts", h.SubmitInterrupt)
	byID.POST("/close", h.CloseSession)
	byID.GET("/report", h.GetReport)
	byID.GET("/violations", h.ListViolations)

	r.GET("/candidates/:id/sessions", validation.CandidateParamMiddleware(), h.ListCandidateSessions)
}

// StartSession handles POST /v1/sessions
func (h *Handler) StartSession(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if !validation.IsValidCandidateID(req.CandidateID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_candidate_id",
			"message": "candidateId must look like cand_ + 24 hex chars",
		})
		return
	}

	if h.candidates != nil {
		ok, err := h.candidates.Exists(c.Request.Context(), req.CandidateID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "candidate_not_found",
				"message": "Candidate not found",
			})
			return
		}
	}

	sess, err := h.service.Start(c.Request.Context(), req.CandidateID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "start_failed",
			"message": "Failed to start session",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": sess})
}

// GetSession handles GET /v1/sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.observationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// SubmitFrame handles POST /v1/sessions/:id/frames
func (h *Handler) SubmitFrame(c *gin.Context) {
	id := c.Param("id")

	var req FrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	faceCount := 0
	orientation := req.Orientation
	switch {
	case req.FaceCount != nil:
		faceCount = *req.FaceCount
	case req.Frame != "":
		if h.analyzer == nil {
			c.JSON(http.StatusNotImplemented, gin.H{
				"error":   "no_analyzer",
				"message": "Server has no frame analyzer; submit faceCount directly",
			})
			return
		}
		image, err := base64.StdEncoding.DecodeString(req.Frame)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_observation",
				"message": "frame must be base64-encoded image bytes",
			})
			return
		}
		analysis, err := h.analyzer.AnalyzeFrame(c.Request.Context(), image)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "analysis_failed",
				"message": err.Error(),
			})
			return
		}
		faceCount = analysis.FaceCount
		if orientation == "" {
			orientation = analysis.Orientation
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_observation",
			"message": "either faceCount or frame is required",
		})
		return
	}

	sess, vio, err := h.service.ObserveFace(c.Request.Context(), id, faceCount, orientation, derefTime(req.ObservedAt))
	if err != nil {
		h.observationError(c, err)
		return
	}

	c.JSON(http.StatusOK, withAuditWarning(gin.H{
		"session":   sess,
		"violation": vio,
	}, vio))
}

// SubmitAudio handles POST /v1/sessions/:id/audio
func (h *Handler) SubmitAudio(c *gin.Context) {
	id := c.Param("id")

	var req AudioRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsSilent == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_observation",
			"message": "isSilent boolean is required",
		})
		return
	}

	sess, vio, err := h.service.ObserveAudio(c.Request.Context(), id, *req.IsSilent, derefTime(req.ObservedAt))
	if err != nil {
		h.observationError(c, err)
		return
	}

	c.JSON(http.StatusOK, withAuditWarning(gin.H{
		"session":   sess,
		"violation": vio,
	}, vio))
}

// SubmitInterrupt handles POST /v1/sessions/:id/interrupts
func (h *Handler) SubmitInterrupt(c *gin.Context) {
	id := c.Param("id")

	var req InterruptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	vio, err := h.service.RecordInterrupt(c.Request.Context(), id, req.EventType, derefTime(req.ObservedAt))
	if err != nil {
		h.observationError(c, err)
		return
	}

	c.JSON(http.StatusOK, withAuditWarning(gin.H{"violation": vio}, vio))
}

// withAuditWarning flags a response whose violation was detected but
// whose audit row could not be written.
func withAuditWarning(resp gin.H, vio *Violation) gin.H {
	if vio != nil && vio.AuditLost {
		resp["warning"] = "audit_write_failed"
	}
	return resp
}

// CloseSession handles POST /v1/sessions/:id/close
func (h *Handler) CloseSession(c *gin.Context) {
	result, err := h.service.Close(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "close_failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// GetReport handles GET /v1/sessions/:id/report
func (h *Handler) GetReport(c *gin.Context) {
	result, err := h.service.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.observationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// ListViolations handles GET /v1/sessions/:id/violations
func (h *Handler) ListViolations(c *gin.Context) {
	id := c.Param("id")
	limit := 100
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 1000 {
				limit = 1000
			}
		}
	}

	violations, err := h.service.Violations(c.Request.Context(), id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"violations": violations,
		"count":      len(violations),
	})
}

// ListCandidateSessions handles GET /v1/candidates/:id/sessions
func (h *Handler) ListCandidateSessions(c *gin.Context) {
	candidateID := c.Param("id")
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 200 {
				limit = 200
			}
		}
	}

	sessions, err := h.service.ListByCandidate(c.Request.Context(), candidateID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// observationError maps core errors to HTTP responses.
func (h *Handler) observationError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, ErrSessionNotFound):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, ErrSessionClosed):
		status = http.StatusConflict
		code = "session_closed"
	case errors.Is(err, ErrInvalidObservation):
		status = http.StatusBadRequest
		code = "invalid_observation"
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
