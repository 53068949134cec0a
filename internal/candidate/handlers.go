package candidate

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vigil-hq/vigil/internal/idgen"
	"github.com/vigil-hq/vigil/internal/validation"
)

// Handler provides HTTP endpoints for candidate management.
type Handler struct {
	store Store
}

// NewHandler creates a new candidate handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up candidate routes on the given router group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/candidates", h.CreateCandidate)
	r.GET("/candidates", h.ListCandidates)
	r.GET("/candidates/:id", validation.CandidateParamMiddleware(), h.GetCandidate)
}

// CreateCandidate handles POST /v1/candidates.
// Registration is idempotent on email: re-registering an existing email
// returns the existing candidate with 200 instead of 201.
func (h *Handler) CreateCandidate(c *gin.Context) {
	var req struct {
		Name  string `json:"name" binding:"required"`
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name and email required"})
		return
	}

	if !validation.IsValidEmail(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_email", "message": "invalid email address"})
		return
	}

	now := time.Now()
	cand := &Candidate{
		ID:        idgen.WithPrefix("cand_"),
		Name:      validation.SanitizeString(req.Name, 200),
		Email:     req.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.store.Create(c.Request.Context(), cand); err != nil {
		if err == ErrEmailTaken {
			existing, gerr := h.store.GetByEmail(c.Request.Context(), req.Email)
			if gerr != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load candidate"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"candidate": existing})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create candidate"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"candidate": cand})
}

// GetCandidate handles GET /v1/candidates/:id.
func (h *Handler) GetCandidate(c *gin.Context) {
	id := c.Param("id")

	cand, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		if err == ErrCandidateNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "candidate not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"candidate": cand})
}

// ListCandidates handles GET /v1/candidates.
func (h *Handler) ListCandidates(c *gin.Context) {
	candidates, err := h.store.List(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": candidates, "count": len(candidates)})
}
