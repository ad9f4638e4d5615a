package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"consultation-queue-backend/internal/metrics"
	"consultation-queue-backend/internal/security"
)

// NewRouter registers every route under the name its security level is configured by.
func NewRouter(h *Handler, live http.Handler, tokens security.TokenManager, limiter *RateLimiter) *mux.Router {
	router := mux.NewRouter()
	router.Use(metrics.InstrumentHandler)
	router.Use(NewAuthMiddleware(tokens).Handler)

	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet).Name("Health")
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet).Name("Metrics")

	api := router.PathPrefix("/api/v1").Subrouter()

	// Requester routes
	submit := http.Handler(http.HandlerFunc(h.SubmitQueueEntry))
	if limiter != nil {
		submit = limiter.Handler(submit)
	}
	api.Handle("/queues/{type}/entries", submit).Methods(http.MethodPost).Name("SubmitQueueEntry")
	api.HandleFunc("/queues/{type}/count", h.GetQueueCount).Methods(http.MethodGet).Name("GetQueueCount")
	api.HandleFunc("/queues/{type}/entries", h.ListQueueEntries).Methods(http.MethodGet).Name("ListQueueEntries")
	if live != nil {
		api.Handle("/queues/{type}/live", live).Methods(http.MethodGet).Name("LiveQueueFeed")
	}

	// Admin routes
	api.HandleFunc("/admin/sessions", h.CreateAdminSession).Methods(http.MethodPost).Name("CreateAdminSession")
	api.HandleFunc("/admin/entries", h.ListAllEntries).Methods(http.MethodGet).Name("ListAllEntries")
	api.HandleFunc("/admin/entries/pending", h.ListPendingEntries).Methods(http.MethodGet).Name("ListPendingEntries")
	api.HandleFunc("/admin/queues/{type}/approved", h.ListApprovedEntries).Methods(http.MethodGet).Name("ListApprovedEntries")
	api.HandleFunc("/admin/entries/{id}/approve", h.ApproveEntry).Methods(http.MethodPost).Name("ApproveEntry")
	api.HandleFunc("/admin/entries/{id}/decline", h.DeclineEntry).Methods(http.MethodPost).Name("DeclineEntry")
	api.HandleFunc("/admin/entries/{id}/resend", h.ResendEntryEmail).Methods(http.MethodPost).Name("ResendEntryEmail")
	api.HandleFunc("/admin/entries/{id}/position", h.UpdateEntryPosition).Methods(http.MethodPost).Name("UpdateEntryPosition")
	api.HandleFunc("/admin/entries/{id}/call", h.CallEntry).Methods(http.MethodPost).Name("CallEntry")
	api.HandleFunc("/admin/entries/{id}/notifications", h.ListEntryNotifications).Methods(http.MethodGet).Name("ListEntryNotifications")
	api.HandleFunc("/admin/entries/{id}/status", h.UpdateEntryStatus).Methods(http.MethodPut).Name("UpdateEntryStatus")
	api.HandleFunc("/admin/entries/{id}", h.RemoveEntry).Methods(http.MethodDelete).Name("RemoveEntry")
	api.HandleFunc("/admin/queues/{type}/recalculate", h.RecalculatePositions).Methods(http.MethodPost).Name("RecalculatePositions")
	api.HandleFunc("/admin/codes/{role}/regenerate", h.RegenerateAdminCode).Methods(http.MethodPost).Name("RegenerateAdminCode")

	return router
}
