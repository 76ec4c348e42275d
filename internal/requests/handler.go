package requests

import (
	"net/http"

	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles service request HTTP endpoints.
type Handler struct {
	service *Service
	val     *validator.Validator
}

// NewHandler creates a new request handler.
func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// SubmitRequest is the request body for creating a service request.
type SubmitRequest struct {
	Category    string  `json:"category" validate:"required,min=2,max=100"`
	SubCategory string  `json:"subCategory" validate:"max=100"`
	Description string  `json:"description" validate:"max=5000"`
	Zip         string  `json:"zip" validate:"max=16"`
	City        string  `json:"city" validate:"max=100"`
	State       string  `json:"state" validate:"max=100"`
	RadiusKM    float64 `json:"radiusKm" validate:"gte=0,lte=500"`
}

// RequestResponse is the API representation of a service request.
type RequestResponse struct {
	ID                uuid.UUID  `json:"id"`
	Category          string     `json:"category"`
	SubCategory       string     `json:"subCategory,omitempty"`
	Description       string     `json:"description,omitempty"`
	Zip               string     `json:"zip,omitempty"`
	City              string     `json:"city,omitempty"`
	State             string     `json:"state,omitempty"`
	Status            string     `json:"status"`
	PrimaryProviderID *uuid.UUID `json:"primaryProviderId,omitempty"`
	CreatedAt         string     `json:"createdAt"`
}

func toResponse(req ServiceRequest) RequestResponse {
	return RequestResponse{
		ID:                req.ID,
		Category:          req.Category,
		SubCategory:       req.SubCategory,
		Description:       req.Description,
		Zip:               req.Zip,
		City:              req.City,
		State:             req.State,
		Status:            string(req.Status),
		PrimaryProviderID: req.PrimaryProviderID,
		CreatedAt:         req.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Submit creates a new service request for the authenticated customer.
// POST /api/v1/requests
func (h *Handler) Submit(c *gin.Context) {
	customerID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	var body SubmitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(body); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	req, err := h.service.Submit(c.Request.Context(), CreateParams{
		CustomerID:  customerID,
		Category:    body.Category,
		SubCategory: body.SubCategory,
		Description: body.Description,
		Zip:         body.Zip,
		City:        body.City,
		State:       body.State,
		RadiusKM:    body.RadiusKM,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, toResponse(req))
}

// Get returns a single request.
// GET /api/v1/requests/:id
func (h *Handler) Get(c *gin.Context) {
	callerID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request id", nil)
		return
	}

	req, err := h.service.Get(c.Request.Context(), requestID, callerID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toResponse(req))
}

// List returns the caller's requests.
// GET /api/v1/requests
func (h *Handler) List(c *gin.Context) {
	customerID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	items, err := h.service.ListMine(c.Request.Context(), customerID)
	if httpkit.HandleError(c, err) {
		return
	}

	responses := make([]RequestResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, toResponse(item))
	}
	httpkit.OK(c, responses)
}
