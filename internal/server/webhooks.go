package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	projectdomain "github.com/trackpilot/revsync/internal/project/domain"
	"go.uber.org/zap"
)

const hottokHeader = "x-hotmart-hottok"

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/:provider/:projectId", s.handleWebhook)
}

// handleWebhook is the provider-facing entry point. URL-shape problems
// answer 4xx; everything past project resolution answers 200 so the
// provider's retry mechanism never amplifies an already-failed
// delivery.
func (s *Server) handleWebhook(c *gin.Context) {
	projectID := c.Param("projectId")
	if _, err := uuid.Parse(projectID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "expected /webhooks/{provider}/{projectId} with a UUID project id",
		})
		return
	}

	project, err := s.projects.FindByID(c.Request.Context(), s.db, projectID)
	if err != nil {
		if errors.Is(err, projectdomain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "unknown project",
			})
			return
		}
		s.log.Error("project lookup failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"error":   "temporary processing failure",
		})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"error":   "unreadable body",
		})
		return
	}

	provider := c.Param("provider")
	hottok := c.GetHeader(hottokHeader)

	result := s.pipeline.Process(c.Request.Context(), project, provider, hottok, body)
	c.JSON(http.StatusOK, result)
}
