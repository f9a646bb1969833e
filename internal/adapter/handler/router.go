package handler

import (
	"log/slog"
	"net/http"
)

type RouterConfig struct {
	Events         *EventHandler
	Tickets        *TicketHandler
	Gateway        *Gateway
	Metrics        http.Handler
	HealthChecks   map[string]HealthCheck
	AllowedOrigins []string
	Logger         *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", Health(cfg.HealthChecks))
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
	if cfg.Gateway != nil {
		mux.Handle("GET /ws", cfg.Gateway)
	}

	mux.HandleFunc("GET /events", cfg.Events.ListEvents)
	mux.HandleFunc("POST /events", cfg.Events.CreateEvent)
	mux.HandleFunc("GET /events/{id}", cfg.Events.GetEvent)
	mux.HandleFunc("GET /events/{id}/inventory", cfg.Events.GetInventory)
	mux.HandleFunc("POST /events/{id}/publish", cfg.Events.Publish)
	mux.HandleFunc("POST /events/{id}/cancel", cfg.Events.Cancel)
	mux.HandleFunc("POST /events/{id}/complete", cfg.Events.Complete)

	mux.HandleFunc("GET /events/{id}/tickets", cfg.Tickets.ListEventTickets)
	mux.HandleFunc("GET /tickets/{id}", cfg.Tickets.GetTicket)
	mux.HandleFunc("POST /tickets/{id}/reserve", cfg.Tickets.Reserve)
	mux.HandleFunc("POST /tickets/{id}/sell", cfg.Tickets.Sell)
	mux.HandleFunc("POST /tickets/{id}/check-in", cfg.Tickets.CheckIn)
	mux.HandleFunc("POST /tickets/{id}/cancel", cfg.Tickets.Cancel)
	mux.HandleFunc("PUT /tickets/{id}/placement", cfg.Tickets.Assign)
	mux.HandleFunc("GET /users/{id}/tickets", cfg.Tickets.ListUserTickets)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	var h http.Handler = mux
	h = CORS(origins, h)
	h = RequestLogger(logger, h)
	h = Recoverer(logger, h)
	return h
}
