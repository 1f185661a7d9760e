package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sw33tLie/lifescore/internal/utils"
	"github.com/sw33tLie/lifescore/pkg/catalog"
	"github.com/sw33tLie/lifescore/pkg/detailcache"
	"github.com/sw33tLie/lifescore/pkg/errs"
	"github.com/sw33tLie/lifescore/pkg/polling"
	"github.com/sw33tLie/lifescore/pkg/scoring"
	"github.com/sw33tLie/lifescore/pkg/storage"
)

// Syncer runs one provider sync for a user, lease handling included.
type Syncer interface {
	Sync(ctx context.Context, userID, source string) (*polling.SyncResult, error)
}

type Server struct {
	DB      *storage.DB
	Details *detailcache.Service
	Engine  *scoring.Engine
	Matcher *catalog.Matcher
	Syncer  Syncer
	Tokens  TokenService
	Log     *logrus.Logger
	Now     func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Router builds the gin engine. Everything under /api needs a bearer token.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.handleHealth)

	api := r.Group("/api", AuthMiddleware(s.Tokens))
	api.GET("/library", s.handleLibrary)
	api.GET("/score", s.handleScore)
	api.GET("/score/snapshot", s.handleScoreSnapshot)
	api.GET("/details/:release", s.handleDetails)
	api.POST("/sync/:provider", s.handleSync)
	api.POST("/match", s.handleMatch)
	return r
}

func (s *Server) Start(addr string) error {
	s.logger().Infof("Starting server on %s", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) logger() *logrus.Logger {
	if s.Log != nil {
		return s.Log
	}
	return utils.Log
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger().WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"latency": time.Since(start).String(),
			"user":    userID(c),
		}).Debug("request")
	}
}

// statusFor maps error markers onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrMissingCredential):
		return http.StatusPreconditionFailed
	case errors.Is(err, utils.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, errs.ErrUnsupportedPlatform):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrUpstreamUnavailable), errors.Is(err, errs.ErrMalformedPayload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": errs.Reason(err), "details": err.Error()})
}
