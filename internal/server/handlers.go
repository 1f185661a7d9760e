package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sw33tLie/lifescore/pkg/catalog"
	"github.com/sw33tLie/lifescore/pkg/errs"
	"github.com/sw33tLie/lifescore/pkg/reconcile"
	"github.com/sw33tLie/lifescore/pkg/scoring"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleLibrary(c *gin.Context) {
	rows, err := s.DB.ListProgress(c.Request.Context(), userID(c))
	if err != nil {
		abortWithError(c, errs.Wrap(errs.ErrPersistence, "list progress", "", err))
		return
	}
	if rows == nil {
		rows = []reconcile.Progress{}
	}
	c.JSON(http.StatusOK, gin.H{"items": rows, "count": len(rows)})
}

type scoreResponse struct {
	scoring.Breakdown
	Warnings []string `json:"warnings,omitempty"`
}

// handleScore recomputes the score from persisted progress and stores a
// snapshot. A failed snapshot write only adds a warning.
func (s *Server) handleScore(c *gin.Context) {
	ctx := c.Request.Context()
	user := userID(c)

	rows, err := s.DB.ListProgress(ctx, user)
	if err != nil {
		abortWithError(c, errs.Wrap(errs.ErrPersistence, "list progress", "", err))
		return
	}
	bonus, err := s.DB.GetBonus(ctx, user)
	if err != nil {
		abortWithError(c, errs.Wrap(errs.ErrPersistence, "get bonus", "", err))
		return
	}

	resp := scoreResponse{Breakdown: s.Engine.Compute(rows, bonus)}
	if err := s.DB.SaveScoreSnapshot(ctx, user, resp.Breakdown, s.now()); err != nil {
		s.logger().Warnf("Could not save score snapshot for %s: %v", user, err)
		resp.Warnings = append(resp.Warnings, "score snapshot was not saved: "+err.Error())
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleScoreSnapshot(c *gin.Context) {
	snap, err := s.DB.LatestScoreSnapshot(c.Request.Context(), userID(c))
	if err != nil {
		abortWithError(c, errs.Wrap(errs.ErrPersistence, "latest snapshot", "", err))
		return
	}
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no score computed yet"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleDetails(c *gin.Context) {
	releaseID, err := strconv.ParseInt(c.Param("release"), 10, 64)
	if err != nil || releaseID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "release must be a positive integer"})
		return
	}
	force := c.Query("force") == "1" || strings.EqualFold(c.Query("force"), "true")

	release, err := s.DB.GetRelease(c.Request.Context(), releaseID)
	if err != nil {
		abortWithError(c, errs.Wrap(errs.ErrPersistence, "get release", c.Param("release"), err))
		return
	}
	if release == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown release"})
		return
	}

	res, err := s.Details.GetOrFetch(c.Request.Context(), userID(c), releaseID, force)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleSync(c *gin.Context) {
	if s.Syncer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sync is not configured"})
		return
	}
	res, err := s.Syncer.Sync(c.Request.Context(), userID(c), strings.ToLower(c.Param("provider")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type matchReq struct {
	Title    string `json:"title"`
	Platform string `json:"platform"`
	Source   string `json:"source"`
	NativeID string `json:"native_id"`
}

func (s *Server) handleMatch(c *gin.Context) {
	var req matchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || strings.TrimSpace(req.Platform) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and platform required"})
		return
	}
	if req.Source == "" {
		req.Source = "manual"
	}

	res, err := s.Matcher.Resolve(c.Request.Context(), catalog.Query{
		Source:         strings.ToLower(req.Source),
		NativeID:       strings.TrimSpace(req.NativeID),
		Title:          req.Title,
		PlatformFields: []string{req.Platform},
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
