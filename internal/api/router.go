package api

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// Pages are the web app pages served at /<name> from <name>.html
var Pages = []string{"wallet", "trading", "portfolio", "exchange"}

// RouterOptions wires the optional parts of the HTTP surface
type RouterOptions struct {
	AllowedOrigins []string
	StaticDir      string                          // served at /* when set
	Feed           http.Handler                    // served at /ws when set
	Metrics        http.Handler                    // served at /metrics when set
	Instrument     func(http.Handler) http.Handler // request metrics middleware
}

// Routes builds the chi router for the API
func (h *Handler) Routes(opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.Log))
	if opts.Instrument != nil {
		r.Use(opts.Instrument)
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}
	if opts.Feed != nil {
		r.Handle("/ws", opts.Feed)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/prices", h.GetPrices)
		r.Post("/user", h.CreateUser)
		r.Get("/user/{id}", h.GetUser)
		r.Post("/buy", h.Buy)
		r.Post("/sell", h.Sell)
		r.Get("/transactions/{id}", h.GetTransactions)
	})

	// Serve the web pages and their static assets
	if opts.StaticDir != "" {
		for _, page := range Pages {
			file := filepath.Join(opts.StaticDir, page+".html")
			r.Get("/"+page, func(w http.ResponseWriter, r *http.Request) {
				http.ServeFile(w, r, file)
			})
		}
		r.Handle("/*", http.FileServer(http.Dir(opts.StaticDir)))
	}

	return r
}

// RequestLogger logs one line per request
func RequestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			entry := log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"remote":     r.RemoteAddr,
			})
			if ww.Status() >= http.StatusInternalServerError {
				entry.Warn("request completed")
				return
			}
			entry.Debug("request completed")
		})
	}
}
