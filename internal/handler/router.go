package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/mentorbridge/internal/metrics"
	"github.com/hitoshi/mentorbridge/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Service   BridgeServiceInterface
	Sanitizer TextSanitizer
	Logger    *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// メトリクス（nilの場合は /metrics を公開しない）
	Metrics  middleware.HTTPStatusRecorder
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → SecurityHeaders → CORS → Logging → Metrics → RateLimit
//
// /health と /metrics はレート制限の対象外とする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	r.Get("/health", Health)
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	h := NewMentorshipHandler(deps.Service, deps.Sanitizer, deps.Logger)

	r.Route("/api", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Post("/init", h.Init)
		r.Put("/users", h.UpsertUser)
		r.Put("/mentors", h.UpsertMentorProfile)
		r.Get("/mentors/{email}/inbox", h.FetchMentorInbox)

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.CreateRequest)
			r.Patch("/{id}/status", h.UpdateRequestStatus)
		})

		r.Get("/pairs", h.ListActivePairs)
		r.Post("/goals", h.CreateGoal)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/requests", h.AdminFetchRequests)
			r.Get("/mentors", h.AdminFetchMentors)
			r.Get("/mentees", h.AdminFetchMentees)
		})
	})

	return r
}

// Health はプロセスの死活確認に応答する。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
