package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Server struct {
	Router *chi.Mux
}

func NewServer(handler *Handler, log *zap.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", handler.Config)

		r.Route("/session", func(r chi.Router) {
			r.Post("/key", handler.SaveKey)
			r.Delete("/key", handler.ClearKey)
			r.Get("/check", handler.CheckKey)
		})

		r.Get("/balance", handler.Balance)
		r.Get("/services", handler.Services)
		r.Get("/countries", handler.Countries)
		r.Get("/operators", handler.Operators)
		r.Get("/prices", handler.Prices)
		r.Get("/prices/top", handler.TopPrices)
		r.Get("/dashboard", handler.Dashboard)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/buy", handler.BuyNumber)
			r.Get("/active", handler.ActiveOrders)
			r.Get("/history", handler.OrderHistory)
			r.Get("/{orderId}/status", handler.OrderStatus)
			r.Post("/{orderId}/action", handler.OrderAction)
			r.Get("/{orderId}/watch", handler.WatchOrder)
		})
	})

	return &Server{Router: r}
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
			)
		})
	}
}

// cors mirrors the request origin and allows credentials, since the session
// cookie must travel cross-origin during development.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
