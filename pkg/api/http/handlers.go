package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handlePredict returns the prediction. The request body is never read.
func (s *Server) handlePredict(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Predict(c.Request.Context()))
}

// handleStatus returns the liveness payload
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Status(c.Request.Context()))
}
