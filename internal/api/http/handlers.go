package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"consultation-queue-backend/internal/domain"
	"consultation-queue-backend/internal/metrics"
	"consultation-queue-backend/internal/service"
)

// Pinger reports store health; *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	queue         service.QueueService
	admin         service.AdminService
	codes         service.AdminCodeService
	auth          service.AuthService
	monitor       service.PositionMonitor
	notifications service.NotificationLog
	db            Pinger
}

func NewHandler(queue service.QueueService, admin service.AdminService, codes service.AdminCodeService, auth service.AuthService, monitor service.PositionMonitor, notifications service.NotificationLog, db Pinger) *Handler {
	return &Handler{
		queue:         queue,
		admin:         admin,
		codes:         codes,
		auth:          auth,
		monitor:       monitor,
		notifications: notifications,
		db:            db,
	}
}

type submitRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Reason    string `json:"reason"`
}

// PublicEntry is the requester-facing view of a waiting entry.
type PublicEntry struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}

type countResponse struct {
	QueueType domain.QueueType `json:"queueType"`
	Count     int              `json:"count"`
}

type sessionRequest struct {
	Role domain.AdminRole `json:"role"`
	Code string           `json:"code"`
}

type approveRequest struct {
	Notes    string `json:"notes"`
	Position int    `json:"position"`
}

type declineRequest struct {
	Reason string `json:"reason"`
}

type statusRequest struct {
	Status domain.QueueStatus `json:"status"`
}

type positionResponse struct {
	Entry        *domain.QueueEntry    `json:"entry"`
	Notification domain.DispatchResult `json:"notification"`
}

type codeResponse struct {
	Role domain.AdminRole `json:"role"`
	Code string           `json:"code"`
}

type healthResponse struct {
	Status     string             `json:"status"`
	Monitoring bool               `json:"monitoring"`
	Queues     []domain.QueueType `json:"queues"`
}

func (h *Handler) SubmitQueueEntry(w http.ResponseWriter, r *http.Request) {
	queueType, err := domain.ParseQueueType(mux.Vars(r)["type"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.queue.AddToQueue(r.Context(), req.FirstName, req.LastName, req.Email, req.Reason, queueType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	metrics.RecordSubmission(string(queueType))
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) GetQueueCount(w http.ResponseWriter, r *http.Request) {
	queueType, err := domain.ParseQueueType(mux.Vars(r)["type"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	count, err := h.queue.GetQueueCount(r.Context(), queueType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{QueueType: queueType, Count: count})
}

func (h *Handler) ListQueueEntries(w http.ResponseWriter, r *http.Request) {
	queueType, err := domain.ParseQueueType(mux.Vars(r)["type"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := h.queue.GetQueueEntries(r.Context(), queueType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]PublicEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, PublicEntry{ID: e.ID, FirstName: e.FirstName, Position: e.Position, CreatedAt: e.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateAdminSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !req.Role.Valid() {
		writeError(w, r, &domain.ValidationError{Field: "role", Message: "must be one of overseer, pastor"})
		return
	}
	session, err := h.auth.CreateAdminSession(r.Context(), bearerTokenFromContext(r.Context()), req.Role, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) ListAllEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.queue.GetAllQueueEntries(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) ListPendingEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.queue.GetPendingQueueEntries(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) ListApprovedEntries(w http.ResponseWriter, r *http.Request) {
	queueType, err := domain.ParseQueueType(mux.Vars(r)["type"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := h.queue.GetApprovedQueueEntries(r.Context(), queueType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) ApproveEntry(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := h.admin.Approve(r.Context(), mux.Vars(r)["id"], req.Notes, req.Position)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) DeclineEntry(w http.ResponseWriter, r *http.Request) {
	var req declineRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := h.admin.Decline(r.Context(), mux.Vars(r)["id"], req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) ResendEntryEmail(w http.ResponseWriter, r *http.Request) {
	res, err := h.admin.Resend(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) UpdateEntryPosition(w http.ResponseWriter, r *http.Request) {
	entry, res, err := h.admin.UpdatePosition(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, positionResponse{Entry: entry, Notification: res})
}

func (h *Handler) CallEntry(w http.ResponseWriter, r *http.Request) {
	res, err := h.admin.CallNext(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListEntryNotifications returns the entry's notification log; records outlive removed entries.
func (h *Handler) ListEntryNotifications(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	records, err := h.notifications.History(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(records) == 0 {
		if _, err := h.queue.GetQueueEntry(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) UpdateEntryStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := h.queue.UpdateQueueStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var queueType domain.QueueType
	if qt := r.URL.Query().Get("queueType"); qt != "" {
		parsed, err := domain.ParseQueueType(qt)
		if err != nil {
			writeError(w, r, err)
			return
		}
		queueType = parsed
	} else {
		entry, err := h.queue.GetQueueEntry(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		queueType = entry.QueueType
	}

	if err := h.queue.RemoveFromQueueWithUpdate(r.Context(), id, queueType); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RecalculatePositions(w http.ResponseWriter, r *http.Request) {
	queueType, err := domain.ParseQueueType(mux.Vars(r)["type"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := h.monitor.TriggerPositionUpdate(r.Context(), queueType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) RegenerateAdminCode(w http.ResponseWriter, r *http.Request) {
	role := domain.AdminRole(mux.Vars(r)["role"])
	if !role.Valid() {
		writeError(w, r, &domain.ValidationError{Field: "role", Message: "must be one of overseer, pastor"})
		return
	}
	claims, ok := AdminClaimsFromContext(r.Context())
	if !ok || claims.Role != role {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "only a " + string(role) + " admin can regenerate this code"})
		return
	}
	code, err := h.codes.Regenerate(r.Context(), role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, codeResponse{Role: role, Code: code})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Queues: []domain.QueueType{}}
	if h.monitor != nil {
		resp.Monitoring = h.monitor.IsMonitoring()
		resp.Queues = h.monitor.ActiveSubscriptions()
	}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			resp.Status = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
