package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/neuroonc-procedure-classifier/internal/cache"
	"github.com/neuroonc-procedure-classifier/internal/classifier"
	"github.com/neuroonc-procedure-classifier/internal/domain"
	"github.com/neuroonc-procedure-classifier/internal/review"
)

// classifyBatchRequest is the batch evaluation payload.
type classifyBatchRequest struct {
	Signals []*domain.ProcedureSignal `json:"signals" binding:"required"`
	Workers int                       `json:"workers,omitempty"`
}

// reloadRequest names the artifact to load; empty path reloads the
// configured one.
type reloadRequest struct {
	Path string `json:"path,omitempty"`
}

// badRequest rejects the request with a field-level validation error.
func badRequest(c *gin.Context, err *domain.ValidationError) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": err.Field})
}

// handleClassify evaluates a single procedure signal.
func (s *Server) handleClassify(c *gin.Context) {
	var signal domain.ProcedureSignal
	if err := c.ShouldBindJSON(&signal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signal payload: " + err.Error()})
		return
	}
	if signal.ProcedureID == "" {
		badRequest(c, domain.NewValidationError("procedure_id", "is required"))
		return
	}

	if s.cache != nil {
		// One snapshot per request: the cache key and the evaluation must
		// see the same artifact version even if a reload lands in between.
		snap := s.refs.Current()
		key := cache.Key(&signal, snap.Version(), classifier.EngineVersion)
		if result, ok := s.cache.Get(c.Request.Context(), key); ok {
			c.Header("X-Cache", "hit")
			c.JSON(http.StatusOK, result)
			return
		}

		result := s.engine.ClassifyPinned(c.Request.Context(), snap, &signal)
		s.cache.Set(c.Request.Context(), key, result)
		c.Header("X-Cache", "miss")
		c.JSON(http.StatusOK, result)
		return
	}

	c.JSON(http.StatusOK, s.engine.Classify(c.Request.Context(), &signal))
}

// handleClassifyBatch evaluates a batch of signals in one call.
func (s *Server) handleClassifyBatch(c *gin.Context) {
	var req classifyBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch payload: " + err.Error()})
		return
	}
	if len(req.Signals) == 0 {
		badRequest(c, domain.NewValidationError("signals", "must not be empty"))
		return
	}

	var results []*domain.ClassificationResult
	if req.Workers > 0 {
		results = s.engine.ClassifyBatchWorkers(c.Request.Context(), req.Signals, req.Workers)
	} else {
		results = s.engine.ClassifyBatch(c.Request.Context(), req.Signals)
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(results),
		"results": results,
	})
}

// handleDescribeReference reports the active reference-table snapshot.
func (s *Server) handleDescribeReference(c *gin.Context) {
	c.JSON(http.StatusOK, s.refs.Current().Describe())
}

// handleReloadReference atomically swaps in a new artifact version. A
// malformed artifact is rejected with 422 and the active snapshot stays in
// place.
func (s *Server) handleReloadReference(c *gin.Context) {
	var req reloadRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reload payload: " + err.Error()})
		return
	}

	path := req.Path
	if path == "" {
		path = s.configManager.GetConfig().Reference.RulesPath
	}

	snap, err := s.refs.Reload(path)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(),
		})
		return
	}

	if s.cache != nil {
		s.cache.Purge()
	}

	c.JSON(http.StatusOK, snap.Describe())
}

// handleGetResult returns the persisted classification for a procedure.
func (s *Server) handleGetResult(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "result store not configured"})
		return
	}

	result, err := s.results.GetByProcedureID(c.Request.Context(), c.Param("procedure_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no classification for procedure"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load classification"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleListLowConfidence returns the human-review worklist.
func (s *Server) handleListLowConfidence(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "result store not configured"})
		return
	}

	threshold := s.configManager.GetConfig().Engine.ReviewThreshold
	if v := c.Query("threshold"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 100 {
			threshold = n
		}
	}
	limit := parseQueryInt(c, "limit", 50)
	offset := parseQueryInt(c, "offset", 0)

	results, err := s.results.ListLowConfidence(c.Request.Context(), threshold, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list results"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"threshold": threshold,
		"count":     len(results),
		"results":   results,
	})
}

// handleSaveReview records a reviewer verdict.
func (s *Server) handleSaveReview(c *gin.Context) {
	if s.reviews == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "review store not configured"})
		return
	}

	var rv review.Review
	if err := c.ShouldBindJSON(&rv); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid review payload: " + err.Error()})
		return
	}
	if rv.ProcedureID == "" {
		badRequest(c, domain.NewValidationError("procedure_id", "is required"))
		return
	}
	if rv.ArtifactVersion == "" {
		badRequest(c, domain.NewValidationError("artifact_version", "is required"))
		return
	}
	if rv.ReviewerCategory != "" && !rv.ReviewerCategory.IsValid() {
		badRequest(c, domain.NewValidationError("reviewer_category", "outside the category vocabulary"))
		return
	}

	if err := s.reviews.Save(c.Request.Context(), &rv); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save review"})
		return
	}

	c.JSON(http.StatusCreated, rv)
}

// handleListReviews pages through recorded verdicts.
func (s *Server) handleListReviews(c *gin.Context) {
	if s.reviews == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "review store not configured"})
		return
	}

	limit := parseQueryInt(c, "limit", 50)
	offset := parseQueryInt(c, "offset", 0)

	reviews, err := s.reviews.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reviews"})
		return
	}

	total, err := s.reviews.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count reviews"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":   total,
		"count":   len(reviews),
		"reviews": reviews,
	})
}

// handleExportReviews streams the full verdict set as JSON.
func (s *Server) handleExportReviews(c *gin.Context) {
	if s.reviews == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "review store not configured"})
		return
	}

	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="reviews.json"`)
	if err := s.reviews.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		s.log.WithError(err).Error("Review export failed")
	}
}

func parseQueryInt(c *gin.Context, name string, fallback int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
