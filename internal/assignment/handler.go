package assignment

import (
	"net/http"

	"leadmarket_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler exposes the admin reassignment endpoint.
type Handler struct {
	service *Service
}

// NewHandler creates the assignment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Assign triggers (re)assignment for a request.
// POST /api/v1/admin/requests/:id/assign
func (h *Handler) Assign(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request id", nil)
		return
	}

	if err := h.service.AssignProvidersForRequest(c.Request.Context(), requestID); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "assigned"})
}
