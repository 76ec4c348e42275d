package notification

import (
	"net/http"

	"leadmarket_backend/internal/email"
	"leadmarket_backend/internal/events"
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/db"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Module is the notification bounded context implementing http.Module.
type Module struct {
	service *Service
	repo    *Repository
	val     *validator.Validator
}

// NewModule creates the notification module and subscribes its event
// handlers on the bus.
func NewModule(pool db.Querier, sender email.Sender, cfg config.NotificationConfig, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := New(pool)
	svc := NewService(repo, sender, cfg, log)
	NewSubscriber(svc, cfg.GetAppBaseURL()).Register(bus)

	return &Module{service: svc, repo: repo, val: val}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notification"
}

// Service returns the service layer for external wiring.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts preference and audit routes. Unsubscribe is
// public so the email link works without a session.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/notifications/unsubscribe", m.unsubscribe)
	ctx.Protected.GET("/notifications/preferences", m.getPreferences)
	ctx.Protected.PUT("/notifications/preferences", m.updatePreferences)
	ctx.Protected.GET("/notifications/audits", m.listAudits)
}

// PreferenceResponse is the API representation of notification settings.
type PreferenceResponse struct {
	EmailEnabled         bool `json:"emailEnabled"`
	LeadsEnabled         bool `json:"leadsEnabled"`
	PaymentsEnabled      bool `json:"paymentsEnabled"`
	SubscriptionsEnabled bool `json:"subscriptionsEnabled"`
}

// UpdatePreferencesRequest is the request body for updating settings.
// All flags are required so a partial body cannot silently re-enable.
type UpdatePreferencesRequest struct {
	EmailEnabled         *bool `json:"emailEnabled" validate:"required"`
	LeadsEnabled         *bool `json:"leadsEnabled" validate:"required"`
	PaymentsEnabled      *bool `json:"paymentsEnabled" validate:"required"`
	SubscriptionsEnabled *bool `json:"subscriptionsEnabled" validate:"required"`
}

// AuditResponse is the API representation of one notification audit.
type AuditResponse struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Recipient  string  `json:"recipient"`
	Subject    string  `json:"subject"`
	Status     string  `json:"status"`
	RetryCount int     `json:"retryCount"`
	Error      *string `json:"error,omitempty"`
	CreatedAt  string  `json:"createdAt"`
}

func toPreferenceResponse(p Preference) PreferenceResponse {
	return PreferenceResponse{
		EmailEnabled:         p.EmailEnabled,
		LeadsEnabled:         p.LeadsEnabled,
		PaymentsEnabled:      p.PaymentsEnabled,
		SubscriptionsEnabled: p.SubscriptionsEnabled,
	}
}

func (m *Module) getPreferences(c *gin.Context) {
	userID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	pref, err := m.repo.GetOrCreatePreference(c.Request.Context(), userID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toPreferenceResponse(pref))
}

func (m *Module) updatePreferences(c *gin.Context) {
	userID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	var body UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := m.val.Struct(body); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	pref, err := m.repo.UpdatePreference(c.Request.Context(), userID,
		*body.EmailEnabled, *body.LeadsEnabled, *body.PaymentsEnabled, *body.SubscriptionsEnabled)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toPreferenceResponse(pref))
}

func (m *Module) listAudits(c *gin.Context) {
	userID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	audits, err := m.repo.ListAuditsByUser(c.Request.Context(), userID, 50)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]AuditResponse, 0, len(audits))
	for _, a := range audits {
		out = append(out, AuditResponse{
			ID:         a.ID.String(),
			Type:       string(a.Type),
			Recipient:  a.Recipient,
			Subject:    a.Subject,
			Status:     string(a.Status),
			RetryCount: a.RetryCount,
			Error:      a.Error,
			CreatedAt:  a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	httpkit.OK(c, out)
}

func (m *Module) unsubscribe(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		httpkit.Error(c, http.StatusBadRequest, "missing token", nil)
		return
	}

	if err := m.repo.UnsubscribeByToken(c.Request.Context(), token); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "unsubscribed"})
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
