package rest

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/gatherhq/registration-service/internal/domain"
	appctx "github.com/gatherhq/registration-service/internal/pkg/context"
	"github.com/gatherhq/registration-service/internal/pkg/logger"
	"github.com/gatherhq/registration-service/internal/transport/rest/response"
)

// RegistrationEngine is the slice of the engine the handlers call.
type RegistrationEngine interface {
	SignUp(ctx context.Context, eventID, roleID, userID uuid.UUID, notes string) (*domain.Registration, error)
	Cancel(ctx context.Context, eventID, roleID, userID uuid.UUID) error
	Move(ctx context.Context, eventID, userID, fromRoleID, toRoleID uuid.UUID) (*domain.Registration, error)
	Remove(ctx context.Context, op domain.Operator, eventID, roleID, userID uuid.UUID) error
	Assign(ctx context.Context, op domain.Operator, eventID, roleID, userID uuid.UUID, notes string) (*domain.Registration, error)
	GuestSignUp(ctx context.Context, eventID, roleID uuid.UUID, fullName, email, phone string) (*domain.GuestRegistration, error)
}

type EventDeleter interface {
	DeleteEventFully(ctx context.Context, eventID uuid.UUID) (domain.CascadeResult, error)
}

type StatusReconciler interface {
	Reconcile(ctx context.Context, ev *domain.Event) (domain.EventStatus, error)
}

type ProgramSyncer interface {
	SyncProgramLabels(ctx context.Context, eventID uuid.UUID, oldIDs, newIDs []uuid.UUID) error
}

type EventReader interface {
	GetEvent(ctx context.Context, eventID uuid.UUID) (*domain.Event, error)
}

type Handler struct {
	engine     RegistrationEngine
	deleter    EventDeleter
	reconciler StatusReconciler
	programs   ProgramSyncer
	events     EventReader
}

func NewHandler(engine RegistrationEngine, deleter EventDeleter, reconciler StatusReconciler, programs ProgramSyncer, events EventReader) *Handler {
	return &Handler{
		engine:     engine,
		deleter:    deleter,
		reconciler: reconciler,
		programs:   programs,
		events:     events,
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID")
		return
	}
	roleID, ok := pathUUID(r, "roleID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid roleID")
		return
	}
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized")
		return
	}

	var req struct {
		Notes string `json:"notes"`
	}
	if r.ContentLength > 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body")
			return
		}
	}

	reg, err := h.engine.SignUp(r.Context(), eventID, roleID, auth.UserID, req.Notes)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusCreated, map[string]string{
		"registration_id": reg.ID.String(),
		"role_name":       reg.RoleName,
	})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID")
		return
	}
	roleID, ok := pathUUID(r, "roleID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid roleID")
		return
	}
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized")
		return
	}

	if err := h.engine.Cancel(r.Context(), eventID, roleID, auth.UserID); err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]string{"msg": "cancelled"})
}

func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID")
		return
	}
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized")
		return
	}

	var req struct {
		FromRoleID string `json:"from_role_id"`
		ToRoleID   string `json:"to_role_id"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body")
		return
	}
	fromRoleID, err := uuid.Parse(req.FromRoleID)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid from_role_id")
		return
	}
	toRoleID, err := uuid.Parse(req.ToRoleID)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid to_role_id")
		return
	}

	reg, err := h.engine.Move(r.Context(), eventID, auth.UserID, fromRoleID, toRoleID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]string{
		"registration_id": reg.ID.String(),
		"role_id":         reg.RoleID.String(),
		"role_name":       reg.RoleName,
	})
}

func (h *Handler) GuestSignUp(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID")
		return
	}
	roleID, ok := pathUUID(r, "roleID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid roleID")
		return
	}

	var req struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body")
		return
	}
	if req.FullName == "" || req.Email == "" {
		fail(w, r, http.StatusBadRequest, "request.invalid", "full_name and email are required")
		return
	}

	guest, err := h.engine.GuestSignUp(r.Context(), eventID, roleID, req.FullName, req.Email, req.Phone)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusCreated, map[string]string{
		"guest_registration_id": guest.ID.String(),
	})
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID")
		return
	}
	roleID, ok := pathUUID(r, "roleID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid roleID")
		return
	}
	userID, ok := pathUUID(r, "userID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid userID")
		return
	}
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized")
		return
	}

	op := domain.Operator{ID: auth.UserID, Role: auth.Role}
	if err := h.engine.Remove(r.Context(), op, eventID, roleID, userID); err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]string{"msg": "removed"})
}

func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID")
		return
	}
	roleID, ok := pathUUID(r, "roleID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid roleID")
		return
	}
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized")
		return
	}

	var req struct {
		UserID string `json:"user_id"`
		Notes  string `json:"notes"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid user_id")
		return
	}

	op := domain.Operator{ID: auth.UserID, Role: auth.Role}
	reg, err := h.engine.Assign(r.Context(), op, eventID, roleID, userID, req.Notes)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusCreated, map[string]string{
		"registration_id": reg.ID.String(),
	})
}

// GetEvent reads an event and reconciles its stored status on the way out.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID")
		return
	}

	ev, err := h.events.GetEvent(r.Context(), eventID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	if _, err := h.reconciler.Reconcile(r.Context(), ev); err != nil {
		// stale status is tolerable on a read; log and serve what we have
		logReconcileFailure(r.Context(), err)
	}

	roles := make([]map[string]any, 0, len(ev.Roles))
	for _, role := range ev.Roles {
		roles = append(roles, map[string]any{
			"id":               role.ID.String(),
			"name":             role.Name,
			"description":      role.Description,
			"max_participants": role.MaxParticipants,
		})
	}

	response.Data(w, http.StatusOK, map[string]any{
		"id":        ev.ID.String(),
		"title":     ev.Title,
		"status":    string(ev.Status),
		"date":      ev.Date,
		"end_date":  ev.EndDate,
		"timezone":  ev.Timezone,
		"signed_up": ev.SignedUp,
		"roles":     roles,
	})
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID")
		return
	}
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized")
		return
	}

	ev, err := h.events.GetEvent(r.Context(), eventID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	if !isPrivilegedRole(auth.Role) && !ev.IsOrganizer(auth.UserID) {
		fail(w, r, http.StatusForbidden, "auth.forbidden", "only organizers may delete an event")
		return
	}

	res, err := h.deleter.DeleteEventFully(r.Context(), eventID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]int{
		"deleted_registrations":       res.DeletedRegistrations,
		"deleted_guest_registrations": res.DeletedGuestRegistrations,
	})
}

// SyncPrograms replaces the event's program-label set with per-id add/remove
// operations against the program back-references.
func (h *Handler) SyncPrograms(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID")
		return
	}
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized")
		return
	}

	var req struct {
		ProgramIDs []string `json:"program_ids"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body")
		return
	}
	newIDs := make([]uuid.UUID, 0, len(req.ProgramIDs))
	for _, s := range req.ProgramIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			fail(w, r, http.StatusBadRequest, "request.invalid", "invalid program id")
			return
		}
		newIDs = append(newIDs, id)
	}

	ev, err := h.events.GetEvent(r.Context(), eventID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	if !isPrivilegedRole(auth.Role) && !ev.IsOrganizer(auth.UserID) {
		fail(w, r, http.StatusForbidden, "auth.forbidden", "only organizers may relabel an event")
		return
	}

	if err := h.programs.SyncProgramLabels(r.Context(), eventID, ev.ProgramIDs, newIDs); err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]string{"msg": "synced"})
}

func isPrivilegedRole(role string) bool {
	r := strings.ToLower(strings.TrimSpace(role))
	return r == "admin" || r == "moderator"
}

func logReconcileFailure(ctx context.Context, err error) {
	logger.WithCtx(ctx).Warn().Err(err).Msg("status reconcile failed on read")
}

func handleErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrEventNotFound):
		fail(w, r, http.StatusNotFound, "event.not_found", err.Error())
	case errors.Is(err, domain.ErrRoleNotFound):
		fail(w, r, http.StatusNotFound, "role.not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidEventState):
		fail(w, r, http.StatusConflict, "event.invalid_state", err.Error())
	case errors.Is(err, domain.ErrAlreadyRegistered):
		fail(w, r, http.StatusConflict, "registration.already_registered", err.Error())
	case errors.Is(err, domain.ErrNotRegistered):
		fail(w, r, http.StatusNotFound, "registration.not_found", err.Error())
	case errors.Is(err, domain.ErrNotInSourceRole):
		fail(w, r, http.StatusNotFound, "registration.not_in_source_role", err.Error())
	case errors.Is(err, domain.ErrCapacityExceeded):
		fail(w, r, http.StatusConflict, "role.capacity_exceeded", err.Error())
	case errors.Is(err, domain.ErrTargetBecameFull):
		fail(w, r, http.StatusConflict, "role.target_became_full", err.Error())
	case errors.Is(err, domain.ErrLockTimeout):
		// retryable: never the same status as a capacity or validation failure
		w.Header().Set("Retry-After", "1")
		fail(w, r, http.StatusServiceUnavailable, "service.busy", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		fail(w, r, http.StatusForbidden, "auth.forbidden", err.Error())
	default:
		// do not leak internals
		fail(w, r, http.StatusInternalServerError, "internal", "internal error")
	}
}

func fail(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	reqID := appctx.GetTraceID(r.Context())
	response.Fail(w, status, code, message, reqID)
}
