package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking-engine/internal/http/middleware"
	"github.com/wolfman30/clinic-booking-engine/internal/notify"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

// NotificationsHandler serves the in-app feed for patients and doctors.
type NotificationsHandler struct {
	store  notify.Store
	logger *logging.Logger
}

func NewNotificationsHandler(store notify.Store, logger *logging.Logger) *NotificationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &NotificationsHandler{store: store, logger: logger.WithComponent("notifications-api")}
}

// Doctor feeds are addressed by doctor id, patient feeds by account id.
func recipient(p middleware.Principal) string {
	if p.Role == middleware.RoleDoctor && p.DoctorID != "" {
		return p.DoctorID
	}
	return p.AccountID
}

// List handles GET /api/notifications?limit=N.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			jsonError(w, "limit must be between 1 and 200", http.StatusBadRequest)
			return
		}
		limit = n
	}
	list, err := h.store.List(r.Context(), recipient(p), limit)
	if err != nil {
		writeDomainError(w, h.logger, "list notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": nonNil(list)})
}

// MarkRead handles POST /api/notifications/{notificationID}/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.store.MarkRead(r.Context(), recipient(p), chi.URLParam(r, "notificationID")); err != nil {
		writeDomainError(w, h.logger, "mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
