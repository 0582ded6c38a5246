/*
Package handler provides the HTTP handlers and routing setup for the chatcore server.

This file defines the main Router, applying middleware like logging, CORS, and
IP-based rate limiting before delegating requests to specific handlers (API
and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"chatcore/internal/pkg/auth/jwt"
	"chatcore/internal/pkg/limiter"
	"chatcore/internal/pkg/logx"
	"chatcore/internal/pkg/resp"
)

const (
	CreateRate    = 0.2
	CreateBurst   = 3
	ConnectRate   = 0.2
	ConnectBurst  = 5
	RegisterRate  = 0.05
	RegisterBurst = 2
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS and the websocket
// upgrader, and applies global and per-route middleware.
func Router(deps *AppDeps) http.Handler {
	createLimiter := limiter.NewIPRateLimiter(rate.Limit(CreateRate), CreateBurst)
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)
	registerLimiter := limiter.NewIPRateLimiter(rate.Limit(RegisterRate), RegisterBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"status":          "ok",
			"service":         "chatcore",
			"connected_users": deps.Registry.ConnectedUsers(),
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/auth", func(auth chi.Router) {
			rateLimitedRegister := registerLimiter.Middleware(HandleRegister(deps))
			auth.Post("/register", rateLimitedRegister.ServeHTTP)
			auth.Post("/login", HandleLogin(deps))
		})

		api.Get("/user/me", HandleGetProfile(deps))

		api.Route("/chat", func(ch chi.Router) {
			rateLimitedPersonal := createLimiter.Middleware(HandleCreatePersonalChat(deps))
			rateLimitedGroup := createLimiter.Middleware(HandleCreateGroupChat(deps))
			ch.Post("/personal", rateLimitedPersonal.ServeHTTP)
			ch.Post("/group", rateLimitedGroup.ServeHTTP)
			ch.Get("/rooms", HandleListRooms(deps))
			ch.Get("/{chatID}/messages", HandleListMessages(deps))
		})
	})

	r.With(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret)).
		Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r
}
