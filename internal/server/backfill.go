package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	backfillsvc "github.com/trackpilot/revsync/internal/backfill/service"
)

func (s *Server) registerBackfillRoutes() {
	s.engine.POST("/backfill", s.handleBackfill)
}

func (s *Server) handleBackfill(c *gin.Context) {
	var req backfillsvc.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if _, err := uuid.Parse(req.ProjectID); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if _, err := s.projects.FindByID(c.Request.Context(), s.db, req.ProjectID); err != nil {
		AbortWithError(c, err)
		return
	}

	report, err := s.backfill.Run(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
