package leads

import (
	"net/http"

	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Handler handles lead HTTP endpoints for providers.
type Handler struct {
	service *Service
	val     *validator.Validator
}

// NewHandler creates a new lead handler.
func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// AcceptLeadRequest is the request body for accepting a lead. The price is
// a decimal string so the amount never passes through a float.
type AcceptLeadRequest struct {
	Details string `json:"details" validate:"required,min=1,max=5000"`
	Price   string `json:"price" validate:"required"`
}

// RejectLeadRequest is the request body for rejecting a lead.
type RejectLeadRequest struct {
	Reason string `json:"reason" validate:"required"`
	Detail string `json:"detail" validate:"max=1000"`
}

// LeadResponse is the API representation of a lead. Customer contact is
// present only after acceptance.
type LeadResponse struct {
	ID               uuid.UUID `json:"id"`
	ServiceRequestID uuid.UUID `json:"serviceRequestId"`
	Category         string    `json:"category"`
	Zip              string    `json:"zip,omitempty"`
	City             string    `json:"city,omitempty"`
	State            string    `json:"state,omitempty"`
	Status           string    `json:"status"`
	Position         int       `json:"position"`
	LeadCost         string    `json:"leadCost"`
	CustomerName     *string   `json:"customerName,omitempty"`
	CustomerEmail    *string   `json:"customerEmail,omitempty"`
	CustomerPhone    *string   `json:"customerPhone,omitempty"`
	RejectReason     *string   `json:"rejectReason,omitempty"`
	CreatedAt        string    `json:"createdAt"`
}

// AcceptLeadResponse returns the payment reference the provider must
// complete payment against.
type AcceptLeadResponse struct {
	PaymentIntentID string `json:"paymentIntentId"`
	Status          string `json:"status"`
}

func toLeadResponse(lead Lead) LeadResponse {
	resp := LeadResponse{
		ID:               lead.ID,
		ServiceRequestID: lead.ServiceRequestID,
		Category:         lead.Category,
		Zip:              lead.Zip,
		City:             lead.City,
		State:            lead.State,
		Status:           string(lead.Status),
		Position:         lead.Position,
		LeadCost:         lead.LeadCost.StringFixed(2),
		CustomerName:     lead.CustomerName,
		CustomerEmail:    lead.CustomerEmail,
		CustomerPhone:    lead.CustomerPhone,
		CreatedAt:        lead.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if lead.RejectReason != nil {
		reason := string(*lead.RejectReason)
		resp.RejectReason = &reason
	}
	return resp
}

// List returns the authenticated provider's leads.
// GET /api/v1/leads
func (h *Handler) List(c *gin.Context) {
	providerID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	items, err := h.service.ListForProvider(c.Request.Context(), providerID)
	if httpkit.HandleError(c, err) {
		return
	}

	responses := make([]LeadResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, toLeadResponse(item))
	}
	httpkit.OK(c, responses)
}

// Get returns a single lead owned by the provider.
// GET /api/v1/leads/:id
func (h *Handler) Get(c *gin.Context) {
	providerID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	lead, err := h.service.GetForProvider(c.Request.Context(), leadID, providerID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toLeadResponse(lead))
}

// Accept stages a lead acceptance with the provider's proposal draft.
// POST /api/v1/leads/:id/accept
func (h *Handler) Accept(c *gin.Context) {
	providerID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	var body AcceptLeadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(body); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	price, err := decimal.NewFromString(body.Price)
	if err != nil || !price.IsPositive() {
		httpkit.Error(c, http.StatusBadRequest, "price must be a positive decimal", nil)
		return
	}

	paymentIntentID, err := h.service.StageAcceptance(c.Request.Context(), leadID, providerID, ProposalDraft{
		Details: body.Details,
		Price:   price,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, AcceptLeadResponse{PaymentIntentID: paymentIntentID, Status: "pending_payment"})
}

// Reject rejects a lead with a categorized reason.
// POST /api/v1/leads/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	providerID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	var body RejectLeadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(body); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	err = h.service.Reject(c.Request.Context(), leadID, providerID, domain.RejectReason(body.Reason), body.Detail)
	if httpkit.HandleError(c, err) {
		return
	}

	c.Status(http.StatusNoContent)
}
