package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spigell/cv-ranker/internal/candidates"
	"github.com/spigell/cv-ranker/internal/ranking"
	"github.com/spigell/cv-ranker/internal/scoring"
)

type scoreRequest struct {
	JobText       string `json:"job_text" validate:"required"`
	CandidateText string `json:"candidate_text" validate:"required"`
	JobType       string `json:"job_type" validate:"jobtype"`
}

type scoreResponse struct {
	Result        scoring.Result `json:"result"`
	FallbackScore int            `json:"fallback_score"`
	IsTechnical   bool           `json:"is_technical"`
	Warning       string         `json:"warning,omitempty"`
}

type rankRequest struct {
	JobText string `json:"job_text" validate:"required"`
	JobType string `json:"job_type" validate:"jobtype"`
}

type rankResponse struct {
	TotalCandidates  int              `json:"total_candidates"`
	RankedCandidates []ranking.Ranked `json:"ranked_candidates"`
	Warning          string           `json:"warning,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"ai_available": s.deps.Scorer.AIAvailable(),
	})
}

func (s *Server) score(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.fail(c, err)
		return
	}

	eval, err := s.deps.Scorer.ScorePair(c.Request.Context(), scoring.PairRequest{
		JobText:       req.JobText,
		CandidateText: req.CandidateText,
		JobType:       req.JobType,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.observe(eval.Result.Source)

	c.JSON(http.StatusOK, scoreResponse{
		Result:        eval.Result,
		FallbackScore: eval.FallbackScore,
		IsTechnical:   eval.IsTechnical,
		Warning:       eval.Result.Warning,
	})
}

func (s *Server) rank(c *gin.Context) {
	var req rankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.fail(c, err)
		return
	}

	job, err := s.deps.Scorer.PrepareJob(req.JobText, req.JobType)
	if err != nil {
		s.fail(c, err)
		return
	}

	if s.deps.Source == nil || s.deps.Matcher == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "no candidate source configured"})
		return
	}

	ctx := c.Request.Context()
	list, err := s.deps.Source.List(ctx)
	if err != nil && !errors.Is(err, candidates.ErrNoCandidates) {
		s.fail(c, err)
		return
	}

	list, err = ranking.RunFilters(ctx, s.logger, s.deps.Filters, list)
	if err != nil {
		s.fail(c, err)
		return
	}

	ranked := s.deps.Matcher.MatchAll(ctx, job, list)
	resp := rankResponse{TotalCandidates: len(ranked), RankedCandidates: ranked}
	for _, r := range ranked {
		s.observe(r.Source)
		if r.Source == scoring.SourceFallback {
			resp.Warning = "some candidates were scored without AI; their scores are lexical estimates"
		}
	}

	c.JSON(http.StatusOK, resp)
}
