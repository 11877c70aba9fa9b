// Package api exposes the /activities/ HTTP resource.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/cdriehuys/timetracker/internal/api/respond"
	"github.com/cdriehuys/timetracker/internal/auth"
	"github.com/cdriehuys/timetracker/internal/domain"
	"github.com/cdriehuys/timetracker/internal/persistence"
)

const (
	maxPageSize = 100
	// NextCursorHeader carries the token for the following page of a list.
	NextCursorHeader = "X-Next-Cursor"
)

var errInvalidCursorID = errors.New("cursor id is not a canonical uuid")

// SessionIssuer starts an anonymous session for the current response.
type SessionIssuer interface {
	Issue(ctx context.Context, w http.ResponseWriter) (string, error)
}

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service  *domain.Service
	sessions SessionIssuer
	log      zerolog.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, sessions SessionIssuer, logger zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
		log:      logger.With().Str("component", "api").Logger(),
	}
}

// RegisterRoutes wires endpoints to the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	r.HandleFunc("/activities/", h.listActivities).Methods(http.MethodGet)
	r.HandleFunc("/activities/", h.createActivity).Methods(http.MethodPost)

	r.HandleFunc("/activities/{id}/", h.getActivity).Methods(http.MethodGet)
	r.HandleFunc("/activities/{id}/", h.replaceActivity).Methods(http.MethodPut)
	r.HandleFunc("/activities/{id}/", h.patchActivity).Methods(http.MethodPatch)
	r.HandleFunc("/activities/{id}/", h.deleteActivity).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func notFound(w http.ResponseWriter, r *http.Request) {
	respond.WriteError(w, http.StatusNotFound, respond.TypeNotFound, "Not found.")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respond.WriteError(w, http.StatusMethodNotAllowed, respond.TypeMethodNotAllowed, "Method \""+r.Method+"\" not allowed.")
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respond.WriteInvalidQuery(w, map[string][]string{"limit": {"A positive integer is required."}})
			return
		}
		if parsed > maxPageSize {
			parsed = maxPageSize
		}
		limit = parsed
	}

	cursor, err := persistence.DecodeCursor(query.Get("cursor"))
	if err == nil && cursor != nil && !domain.IsCanonicalID(cursor.ID) {
		err = errInvalidCursorID
	}
	if err != nil {
		respond.WriteInvalidQuery(w, map[string][]string{"cursor": {"Invalid cursor."}})
		return
	}

	activities, next, err := h.service.ListActivities(r.Context(), caller.Owner(), cursor, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if next != nil {
		w.Header().Set(NextCursorHeader, persistence.EncodeCursor(next))
	}
	respond.WriteJSON(w, http.StatusOK, toActivityViews(activities))
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)

	payload, verr := decodeActivity(r, modeCreate)
	if verr != nil {
		respond.WriteFieldErrors(w, "invalid activity", verr.Fields)
		return
	}

	// Anonymous visitors get a session before anything is written so the record has an owner.
	if !caller.Authenticated() && caller.SessionKey == "" {
		key, err := h.sessions.Issue(r.Context(), w)
		if err != nil {
			h.log.Error().Err(err).Msg("issue session failed")
			respond.WriteServerError(w)
			return
		}
		caller.SessionKey = key
	}

	activity, err := h.service.CreateActivity(r.Context(), caller.Owner(), payload.createInput())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", activity.Path())
	respond.WriteJSON(w, http.StatusCreated, toActivityView(*activity))
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.service.GetActivity(r.Context(), callerOf(r).Owner(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) replaceActivity(w http.ResponseWriter, r *http.Request) {
	h.updateActivity(w, r, modeReplace)
}

func (h *Handler) patchActivity(w http.ResponseWriter, r *http.Request) {
	h.updateActivity(w, r, modePartial)
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request, mode decodeMode) {
	owner := callerOf(r).Owner()
	id := mux.Vars(r)["id"]

	// Unknown ids are reported before payload errors.
	if _, err := h.service.GetActivity(r.Context(), owner, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	payload, verr := decodeActivity(r, mode)
	if verr != nil {
		respond.WriteFieldErrors(w, "invalid activity", verr.Fields)
		return
	}

	activity, err := h.service.UpdateActivity(r.Context(), owner, id, payload.patch())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteActivity(r.Context(), callerOf(r).Owner(), mux.Vars(r)["id"]); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		respond.WriteFieldErrors(w, verr.Unwrap().Error(), verr.Fields)
	case errors.Is(err, domain.ErrActivityNotFound):
		notFound(w, r)
	default:
		h.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("activity request failed")
		respond.WriteServerError(w)
	}
}

func callerOf(r *http.Request) auth.Caller {
	caller, _ := auth.CallerFromContext(r.Context())
	return caller
}
