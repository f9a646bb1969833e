package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/srgjo27/ticket_engine/internal/core/domain"
	"github.com/srgjo27/ticket_engine/internal/core/services"
)

type TicketHandler struct {
	svc    *services.TicketService
	logger *slog.Logger
}

func NewTicketHandler(svc *services.TicketService, logger *slog.Logger) *TicketHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TicketHandler{svc: svc, logger: logger}
}

type ticketResponse struct {
	ID         uuid.UUID             `json:"id"`
	EventID    int64                 `json:"event_id"`
	UserID     *uuid.UUID            `json:"user_id,omitempty"`
	Status     string                `json:"status"`
	PriceCents int64                 `json:"price_cents"`
	Currency   string                `json:"currency,omitempty"`
	Seat       *string               `json:"seat,omitempty"`
	Tier       *string               `json:"tier,omitempty"`
	Actions    []domain.TicketAction `json:"actions"`
	IssuedAt   time.Time             `json:"issued_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// placementRequest leaves absent fields unchanged. An empty string clears.
type placementRequest struct {
	Seat *string `json:"seat"`
	Tier *string `json:"tier"`
}

func toTicketResponse(t *domain.Ticket) ticketResponse {
	return ticketResponse{
		ID:         t.ID,
		EventID:    t.EventID,
		UserID:     t.UserID,
		Status:     string(t.Status),
		PriceCents: t.PriceCents,
		Currency:   t.Currency,
		Seat:       t.Seat,
		Tier:       t.Tier,
		Actions:    t.AllowedActions(),
		IssuedAt:   t.IssuedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

func (h *TicketHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	id, err := ticketIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	ticket, err := h.svc.GetTicket(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTicketResponse(ticket))
}

func (h *TicketHandler) ListEventTickets(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	tickets, err := h.svc.ListTickets(r.Context(), eventID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTicketResponses(tickets))
}

func (h *TicketHandler) ListUserTickets(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: invalid user id", domain.ErrInvalidRequest))
		return
	}

	tickets, err := h.svc.ListUserTickets(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTicketResponses(tickets))
}

func (h *TicketHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := ticketIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req placementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: invalid json body", domain.ErrInvalidRequest))
		return
	}

	ticket, err := h.svc.Assign(r.Context(), id, domain.Placement{Seat: req.Seat, Tier: req.Tier})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTicketResponse(ticket))
}

func toTicketResponses(tickets []domain.Ticket) []ticketResponse {
	resp := make([]ticketResponse, 0, len(tickets))
	for i := range tickets {
		resp = append(resp, toTicketResponse(&tickets[i]))
	}
	return resp
}

func (h *TicketHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.ActionReserve, true)
}

func (h *TicketHandler) Sell(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.ActionSell, true)
}

func (h *TicketHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.ActionCheckIn, false)
}

func (h *TicketHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.ActionCancel, false)
}

func (h *TicketHandler) transition(w http.ResponseWriter, r *http.Request, action domain.TicketAction, needsUser bool) {
	id, err := ticketIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var user *uuid.UUID
	if needsUser {
		userID, err := userFromRequest(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), Code: "unauthorized"})
			return
		}
		user = &userID
	}

	ticket, err := h.svc.Transition(r.Context(), id, action, user)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTicketResponse(ticket))
}

func ticketIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid ticket id", domain.ErrInvalidRequest)
	}
	return id, nil
}
