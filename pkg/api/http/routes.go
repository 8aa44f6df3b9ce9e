package http

import (
	"github.com/gin-gonic/gin"
)

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	s.router.POST("/predict", s.handlePredict)
	s.router.OPTIONS("/predict", handlePreflight)

	registerStatusRoutes(s.router.Group("/"), s)

	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// registerStatusRoutes mounts the status group on rg, so it can be
// composed under any prefix
func registerStatusRoutes(rg *gin.RouterGroup, s *Server) {
	rg.GET("/status", s.handleStatus)
	rg.OPTIONS("/status", handlePreflight)
}
