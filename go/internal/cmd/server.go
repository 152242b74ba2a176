package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/puckdraft/go/internal/auth"
	"github.com/mcdev12/puckdraft/go/internal/draft/gateway"
	"github.com/mcdev12/puckdraft/go/internal/draft/httpapi"
	"github.com/mcdev12/puckdraft/go/internal/draft/rpc"
)

func setupServer(cfg *Config, services *Services) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// REST API and health checks
	api := httpapi.New(services.Draft, services.Admins, auth.HeaderAuthenticator{}, services.Health, services.Clock)
	api.Register(r)

	// WebSocket gateway
	gateway.NewWebSocketHandler(services.Hub, nil).RegisterRoutes(r)

	// Connect RPC service
	registerServices(r, services)

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: allowedOrigins(cfg.Server.CORSOrigin),
		AllowedHeaders: []string{"*"},
	})

	// Setup HTTP/2 server
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           h2c.NewHandler(c.Handler(r), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func registerServices(r chi.Router, services *Services) {
	draftServicePath, draftServiceHandler := rpc.NewHandler(rpc.NewService(services.Draft, services.Admins))
	r.Handle(draftServicePath+"*", draftServiceHandler)
}

func allowedOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// connectionConfig restricts websocket upgrades to the configured origins.
func connectionConfig(corsOrigin string) gateway.ConnectionConfig {
	config := gateway.DefaultConnectionConfig()
	origins := allowedOrigins(corsOrigin)
	if len(origins) == 1 && origins[0] == "*" {
		return config
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	config.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
	return config
}
