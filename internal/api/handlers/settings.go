package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stripelink/internal/core"
	"stripelink/internal/settings"
	"stripelink/internal/types"
)

// SettingsView is the admin-facing read model of the settings bundle.
// The stored secret is never returned whole; only a display preview and
// a presence flag.
type SettingsView struct {
	APIKeySource          string `json:"api_key_source"`
	SecretSet             bool   `json:"secret_set"`
	SecretPreview         string `json:"secret_preview,omitempty"`
	CustomerField         string `json:"customer_field"`
	PortalConfigurationID string `json:"portal_configuration_id"`
	ShowMemberPortalLink  bool   `json:"show_member_portal_link"`
	ShowStaffCustomerLink bool   `json:"show_staff_customer_link"`
}

// SettingsHandler serves the admin settings endpoints.
type SettingsHandler struct {
	store     settings.Store
	envSecret types.SecretString
	validator *core.Validator
	logger    *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler. envSecret is the
// environment-level fallback secret, needed for save-time validation.
func NewSettingsHandler(store settings.Store, envSecret types.SecretString, v *core.Validator, logger *slog.Logger) *SettingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsHandler{
		store:     store,
		envSecret: envSecret,
		validator: v,
		logger:    logger,
	}
}

// RegisterRoutes mounts the settings endpoints.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/admin/stripe/settings", h.GetSettings)
	r.Put("/admin/stripe/settings", h.UpdateSettings)
}

// GetSettings handles GET /admin/stripe/settings.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, types.PermAdministerSettings) {
		return
	}

	s, err := h.store.Load(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	view := SettingsView{
		APIKeySource:          s.APIKeySource,
		CustomerField:         s.CustomerFieldName(),
		PortalConfigurationID: s.PortalConfigurationID,
		ShowMemberPortalLink:  s.ShowMemberPortalLink,
		ShowStaffCustomerLink: s.ShowStaffCustomerLink,
	}
	if stored := s.StoredSecret(); !stored.IsEmpty() {
		view.SecretSet = true
		view.SecretPreview = stored.Preview()
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: view})
}

// UpdateSettings handles PUT /admin/stripe/settings. The update is
// validated against the current bundle and the environment secret; the
// stored-source-requires-a-secret invariant is enforced in
// settings.Apply.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, types.PermAdministerSettings) {
		return
	}

	var upd settings.Update
	if err := core.DecodeJSON(w, r, &upd); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(upd); err != nil {
		core.Error(w, r, err)
		return
	}

	current, err := h.store.Load(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	next, err := settings.Apply(current, upd, h.envSecret)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.store.Save(r.Context(), next); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "stripe settings updated",
		"api_key_source", next.APIKeySource,
		"customer_field", next.CustomerFieldName(),
	)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"status": "saved"}})
}

// requirePermission writes a 403 and returns false when the request's
// actor lacks the named permission.
func requirePermission(w http.ResponseWriter, r *http.Request, permission string) bool {
	actor, ok := types.GetActor(r.Context())
	if !ok || !actor.HasPermission(permission) {
		core.Error(w, r, types.NewAppError(
			types.ErrCodePermissionDenied,
			"this operation requires the "+permission+" permission",
			nil,
		))
		return false
	}
	return true
}
