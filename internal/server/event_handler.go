package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Vishal-meena/NeoFi-Api/internal/models"
	"github.com/Vishal-meena/NeoFi-Api/internal/repository"
)

// EventHandler handles HTTP requests for events, sharing and version
// history. Authorization is capability-based: the owner implicitly
// holds every capability, shared users act within their granted role.
type EventHandler struct {
	events   repository.EventRepository
	versions repository.VersionRepository
	perms    repository.PermissionRepository
	log      *zerolog.Logger
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(
	events repository.EventRepository,
	versions repository.VersionRepository,
	perms repository.PermissionRepository,
	log *zerolog.Logger,
) *EventHandler {
	return &EventHandler{
		events:   events,
		versions: versions,
		perms:    perms,
		log:      log,
	}
}

// CreateEvent handles the creation of a new event
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, `{"status":"error","message":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := validate.Struct(req); err != nil {
		h.log.Error().Err(err).Msg("Validation failed")
		http.Error(w, `{"status":"error","message":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	if err := req.Validate(); err != nil {
		http.Error(w, `{"status":"error","message":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	user := CurrentUser(r)
	event := eventFromRequest(&req, user.ID)

	if err := h.events.Create(r.Context(), event); err != nil {
		h.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to create event")
		http.Error(w, `{"status":"error","message":"Failed to create event"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"status": "success",
		"event":  event,
	})
}

// CreateBatch creates a list of events in one all-or-nothing call
func (h *EventHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, `{"status":"error","message":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := validate.Struct(req); err != nil {
		h.log.Error().Err(err).Msg("Validation failed")
		http.Error(w, `{"status":"error","message":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	// Reject the whole batch on the first invalid item, before anything
	// is persisted.
	for i := range req.Events {
		if err := req.Events[i].Validate(); err != nil {
			http.Error(w, `{"status":"error","message":"event `+strconv.Itoa(i)+`: `+err.Error()+`"}`, http.StatusBadRequest)
			return
		}
	}

	user := CurrentUser(r)
	events := make([]*models.Event, 0, len(req.Events))
	for i := range req.Events {
		events = append(events, eventFromRequest(&req.Events[i], user.ID))
	}

	if err := h.events.CreateBatch(r.Context(), events); err != nil {
		h.log.Error().Err(err).Int("count", len(events)).Msg("Failed to create event batch")
		http.Error(w, `{"status":"error","message":"Failed to create events"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "success",
		"events": events,
	})
}

// ListEvents lists the caller's events with optional time-range filters
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	q := models.ListEventsQuery{Skip: 0, Limit: 100}
	params := r.URL.Query()

	if v := params.Get("skip"); v != "" {
		skip, err := strconv.Atoi(v)
		if err != nil || skip < 0 {
			http.Error(w, `{"status":"error","message":"Invalid skip parameter"}`, http.StatusBadRequest)
			return
		}
		q.Skip = skip
	}
	if v := params.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 100 {
			http.Error(w, `{"status":"error","message":"Invalid limit parameter"}`, http.StatusBadRequest)
			return
		}
		q.Limit = limit
	}
	if v := params.Get("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, `{"status":"error","message":"Invalid start_date parameter"}`, http.StatusBadRequest)
			return
		}
		q.StartDate = &t
	}
	if v := params.Get("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, `{"status":"error","message":"Invalid end_date parameter"}`, http.StatusBadRequest)
			return
		}
		q.EndDate = &t
	}

	events, err := h.events.ListByOwner(r.Context(), user.ID, q)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to list events")
		http.Error(w, `{"status":"error","message":"Failed to list events"}`, http.StatusInternalServerError)
		return
	}

	if events == nil {
		events = []*models.Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "success",
		"events": events,
	})
}

// GetEvent retrieves an event with its permission grants
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, _, ok := h.authorize(w, r, models.Role.CanRead)
	if !ok {
		return
	}

	permissions, err := h.perms.List(r.Context(), event.ID)
	if err != nil {
		h.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to list permissions")
		http.Error(w, `{"status":"error","message":"Failed to get event"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "success",
		"event": models.EventWithPermissions{
			Event:       *event,
			Permissions: permissions,
		},
	})
}

// UpdateEvent applies a partial update and records a new version
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	event, user, ok := h.authorize(w, r, models.Role.CanWrite)
	if !ok {
		return
	}

	var req models.EventUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, `{"status":"error","message":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	updated, err := h.events.Update(r.Context(), event.ID, &req, user.ID)
	if err != nil {
		if errors.Is(err, models.ErrInvalidTimeWindow) || errors.Is(err, models.ErrInvalidRecurrence) {
			http.Error(w, `{"status":"error","message":"`+err.Error()+`"}`, http.StatusBadRequest)
			return
		}
		if errors.Is(err, repository.ErrEventNotFound) {
			http.Error(w, `{"status":"error","message":"Event not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to update event")
		http.Error(w, `{"status":"error","message":"Failed to update event"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "success",
		"event":  updated,
	})
}

// DeleteEvent deletes an event; versions and grants cascade
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	event, _, ok := h.authorize(w, r, models.Role.CanShare)
	if !ok {
		return
	}

	if err := h.events.Delete(r.Context(), event.ID); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			http.Error(w, `{"status":"error","message":"Event not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to delete event")
		http.Error(w, `{"status":"error","message":"Failed to delete event"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Event deleted successfully"})
}

// ShareEvent applies a batch of role grants, owner only
func (h *EventHandler) ShareEvent(w http.ResponseWriter, r *http.Request) {
	event, _, ok := h.authorize(w, r, models.Role.CanShare)
	if !ok {
		return
	}

	var req models.ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, `{"status":"error","message":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := validate.Struct(req); err != nil {
		h.log.Error().Err(err).Msg("Validation failed")
		http.Error(w, `{"status":"error","message":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	if err := h.perms.Share(r.Context(), event.ID, req.Permissions); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			http.Error(w, `{"status":"error","message":"User not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to share event")
		http.Error(w, `{"status":"error","message":"Failed to share event"}`, http.StatusInternalServerError)
		return
	}

	permissions, err := h.perms.List(r.Context(), event.ID)
	if err != nil {
		h.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to list permissions")
		http.Error(w, `{"status":"error","message":"Failed to share event"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "success",
		"message":     "Event shared successfully",
		"permissions": permissions,
	})
}

// GetVersion retrieves a specific historical snapshot
func (h *EventHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	event, _, ok := h.authorize(w, r, models.Role.CanRead)
	if !ok {
		return
	}

	number, ok := h.versionNumber(w, r, "version")
	if !ok {
		return
	}

	version, err := h.versions.Get(r.Context(), event.ID, number)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			http.Error(w, `{"status":"error","message":"Version not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to get version")
		http.Error(w, `{"status":"error","message":"Failed to get version"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "success",
		"version": version,
	})
}

// RollbackEvent restores a past snapshot as a new forward version
func (h *EventHandler) RollbackEvent(w http.ResponseWriter, r *http.Request) {
	event, user, ok := h.authorize(w, r, models.Role.CanWrite)
	if !ok {
		return
	}

	number, ok := h.versionNumber(w, r, "version")
	if !ok {
		return
	}

	updated, err := h.events.Rollback(r.Context(), event.ID, number, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			http.Error(w, `{"status":"error","message":"Version not found"}`, http.StatusNotFound)
			return
		}
		if errors.Is(err, repository.ErrEventNotFound) {
			http.Error(w, `{"status":"error","message":"Event not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).
			Str("event_id", event.ID.String()).
			Int("version", number).
			Msg("Failed to roll back event")
		http.Error(w, `{"status":"error","message":"Failed to roll back event"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "success",
		"event":  updated,
	})
}

// GetChangelog returns the event's full ordered history
func (h *EventHandler) GetChangelog(w http.ResponseWriter, r *http.Request) {
	event, _, ok := h.authorize(w, r, models.Role.CanRead)
	if !ok {
		return
	}

	entries, err := h.versions.Changelog(r.Context(), event.ID)
	if err != nil {
		h.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to load changelog")
		http.Error(w, `{"status":"error","message":"Failed to load changelog"}`, http.StatusInternalServerError)
		return
	}

	if entries == nil {
		entries = []models.ChangelogEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "success",
		"changelog": entries,
	})
}

// GetDiff compares two versions field by field
func (h *EventHandler) GetDiff(w http.ResponseWriter, r *http.Request) {
	event, _, ok := h.authorize(w, r, models.Role.CanRead)
	if !ok {
		return
	}

	v1, ok := h.versionNumber(w, r, "version1")
	if !ok {
		return
	}
	v2, ok := h.versionNumber(w, r, "version2")
	if !ok {
		return
	}

	diff, err := h.versions.Diff(r.Context(), event.ID, v1, v2)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			http.Error(w, `{"status":"error","message":"One or both versions not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to diff versions")
		http.Error(w, `{"status":"error","message":"Failed to diff versions"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(diff)
}

// authorize resolves the event from the path, determines the caller's
// role and checks it against the required capability. It writes the
// error response itself and reports whether the caller may proceed.
// The order is fixed: resolve (404) before authorize (403), and both
// strictly before any mutation.
func (h *EventHandler) authorize(w http.ResponseWriter, r *http.Request, allowed func(models.Role) bool) (*models.Event, *models.User, bool) {
	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		http.Error(w, `{"status":"error","message":"Invalid event ID format"}`, http.StatusBadRequest)
		return nil, nil, false
	}

	event, err := h.events.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			http.Error(w, `{"status":"error","message":"Event not found"}`, http.StatusNotFound)
			return nil, nil, false
		}
		h.log.Error().Err(err).Str("event_id", id.String()).Msg("Failed to get event")
		http.Error(w, `{"status":"error","message":"Failed to get event"}`, http.StatusInternalServerError)
		return nil, nil, false
	}

	user := CurrentUser(r)

	role := models.RoleOwner
	if event.OwnerID != user.ID {
		role, err = h.perms.GetRole(r.Context(), event.ID, user.ID)
		if err != nil {
			h.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to resolve role")
			http.Error(w, `{"status":"error","message":"Internal server error"}`, http.StatusInternalServerError)
			return nil, nil, false
		}
	}

	if role == models.RoleNone || !allowed(role) {
		http.Error(w, `{"status":"error","message":"Not authorized to access this event"}`, http.StatusForbidden)
		return nil, nil, false
	}

	return event, user, true
}

func (h *EventHandler) versionNumber(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	number, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || number < 1 {
		http.Error(w, `{"status":"error","message":"Invalid version number"}`, http.StatusBadRequest)
		return 0, false
	}
	return number, true
}

func eventFromRequest(req *models.EventRequest, ownerID uuid.UUID) *models.Event {
	return &models.Event{
		ID:                uuid.New(),
		Title:             req.Title,
		Description:       req.Description,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		Location:          req.Location,
		IsRecurring:       req.IsRecurring,
		RecurrencePattern: req.RecurrencePattern,
		RecurrenceEndDate: req.RecurrenceEndDate,
		OwnerID:           ownerID,
	}
}
