package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/candidates"
	"github.com/spigell/cv-ranker/internal/jobtype"
	"github.com/spigell/cv-ranker/internal/metrics"
	"github.com/spigell/cv-ranker/internal/ranking"
	"github.com/spigell/cv-ranker/internal/scoring"
)

const shutdownTimeout = 10 * time.Second

// PairScorer is the part of *scoring.Scorer the handlers need.
type PairScorer interface {
	PrepareJob(text, override string) (scoring.Job, error)
	ScorePair(ctx context.Context, req scoring.PairRequest) (scoring.Evaluation, error)
	AIAvailable() bool
}

// Deps are the collaborators behind the endpoints. Source may be nil, which disables ranking.
type Deps struct {
	Scorer  PairScorer
	Matcher *ranking.Matcher
	Source  candidates.Source
	Filters []ranking.Filter
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Server wires the gin engine.
type Server struct {
	deps     Deps
	engine   *gin.Engine
	validate *validator.Validate
	logger   *zap.Logger
}

func New(deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	_ = validate.RegisterValidation("jobtype", func(fl validator.FieldLevel) bool {
		if fl.Field().String() == "" {
			return true
		}
		_, err := jobtype.Parse(fl.Field().String())
		return err == nil
	})

	s := &Server{deps: deps, validate: validate, logger: log.Named("http")}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.accessLog())
	if deps.Metrics != nil {
		engine.Use(deps.Metrics.Middleware())
		engine.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	engine.GET("/healthz", s.health)
	api := engine.Group("/api/v1")
	api.POST("/score", s.score)
	api.POST("/rank", s.rank)

	s.engine = engine
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr), zap.Bool("ai_available", s.deps.Scorer.AIAvailable()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusBadRequest {
		msg = extractValidationErrors(err)
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func (s *Server) observe(source scoring.Source) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveScore(string(source))
	}
}
