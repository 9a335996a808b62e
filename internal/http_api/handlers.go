package http_api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lockguard/lockguard/internal/models"
	"github.com/lockguard/lockguard/pkg/validation"
)

// LockStatusResponse is the answer of the lock probe endpoint
type LockStatusResponse struct {
	Resource string `json:"resource"`
	Locked   bool   `json:"locked"`
}

// health is a handler for the /valida endpoint.
func (s *HTTPServer) health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// certify is a handler for the certification endpoint.
// Business failures are reported inside the response body with status 200.
func (s *HTTPServer) certify(c *gin.Context) {
	var req models.CertificationRequest

	// Parse JSON request body
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debugw("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, s.certifier.Certify(c.Request.Context(), &req))
}

// isLocked is a handler for the lock probe endpoint.
func (s *HTTPServer) isLocked(c *gin.Context) {
	resource := c.Param("resource")
	if err := validation.ValidateResourceID(resource); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid resource: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, LockStatusResponse{
		Resource: resource,
		Locked:   s.probe.IsResourceLocked(c.Request.Context(), resource),
	})
}

// lockInfo is a handler returning the stored lock row of a resource.
func (s *HTTPServer) lockInfo(c *gin.Context) {
	resource := c.Param("resource")
	if err := validation.ValidateResourceID(resource); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid resource: " + err.Error()})
		return
	}

	lock, err := s.inspector.Inspect(c.Request.Context(), resource)
	if err != nil {
		s.logger.Errorw("Failed to get lock", "resource", resource, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get lock"})
		return
	}
	if lock == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lock not found"})
		return
	}

	c.JSON(http.StatusOK, lock)
}
