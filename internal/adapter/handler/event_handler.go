package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/srgjo27/ticket_engine/internal/core/domain"
	"github.com/srgjo27/ticket_engine/internal/core/services"
)

type EventHandler struct {
	svc    *services.EventService
	logger *slog.Logger
}

func NewEventHandler(svc *services.EventService, logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &EventHandler{svc: svc, logger: logger}
}

type createEventRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	Capacity    int        `json:"capacity"`
	PriceCents  int64      `json:"price_cents"`
	Currency    string     `json:"currency"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

type eventResponse struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Capacity    int        `json:"capacity"`
	Available   int        `json:"available"`
	Status      string     `json:"status"`
	PriceCents  int64      `json:"price_cents"`
	Currency    string     `json:"currency,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toEventResponse(e *domain.Event) eventResponse {
	return eventResponse{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		Capacity:    e.Capacity,
		Available:   e.Available,
		Status:      string(e.Status),
		PriceCents:  e.PriceCents,
		Currency:    e.Currency,
		StartsAt:    e.StartsAt,
		EndsAt:      e.EndsAt,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

type inventoryResponse struct {
	EventID   int64 `json:"event_id"`
	Capacity  int   `json:"capacity"`
	Available int   `json:"available"`
	Allocated int   `json:"allocated"`
}

// ListEvents accepts the optional query parameters q, status and upcoming.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := eventFilterParams(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	events, err := h.svc.ListEvents(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := make([]eventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, toEventResponse(&events[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	event, err := h.svc.GetEvent(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(event))
}

func (h *EventHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	inv, err := h.svc.GetInventory(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inventoryResponse{
		EventID:   inv.EventID,
		Capacity:  inv.Capacity,
		Available: inv.Available,
		Allocated: inv.Allocated,
	})
}

func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: invalid json body", domain.ErrInvalidRequest))
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), domain.NewEventParams{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Capacity:    req.Capacity,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventResponse(event))
}

func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Publish)
}

func (h *EventHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Cancel)
}

func (h *EventHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Complete)
}

func (h *EventHandler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, int64) (*domain.Event, error)) {
	id, err := eventIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	event, err := apply(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(event))
}

func eventFilterParams(r *http.Request) (domain.EventFilter, error) {
	q := r.URL.Query()
	filter := domain.EventFilter{
		Query:  q.Get("q"),
		Status: domain.EventStatus(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
	}
	if raw := q.Get("upcoming"); raw != "" {
		upcoming, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("%w: upcoming must be a boolean", domain.ErrInvalidRequest)
		}
		filter.Upcoming = upcoming
	}
	return filter, nil
}

func eventIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid event id", domain.ErrInvalidRequest)
	}
	return id, nil
}
