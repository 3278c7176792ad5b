package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/vouchers-backend/api/controllers"
	"github.com/angelmondragon/vouchers-backend/api/middleware"
	"github.com/angelmondragon/vouchers-backend/internal/auth"
	"github.com/angelmondragon/vouchers-backend/internal/vouchers"
	"github.com/angelmondragon/vouchers-backend/pkg/config"
	"github.com/angelmondragon/vouchers-backend/pkg/logger"
	"github.com/angelmondragon/vouchers-backend/pkg/redis"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	Redis      *redis.Client
	Verifier   middleware.TokenVerifier
	AuthSvc    auth.Service
	VoucherSvc vouchers.Service
	Registry   *prometheus.Registry
	Readiness  map[string]controllers.Pinger
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.AuthSvc, cfg.AuthCookies, logg))
		r.Post("/logout", controllers.AuthLogout(deps.AuthSvc, cfg.AuthCookies, logg))
	})

	r.Route("/vouchers", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Verifier, logg))

		r.Post("/generate", controllers.VoucherGenerate(deps.VoucherSvc, logg))
		r.Post("/claim", controllers.VoucherClaim(deps.VoucherSvc, logg))
		r.Get("/all", controllers.VoucherList(deps.VoucherSvc, logg))
		r.Get("/{voucherId}", controllers.VoucherGet(deps.VoucherSvc, logg))
		r.Get("/{voucherId}/artifact", controllers.VoucherArtifact(deps.VoucherSvc, logg))
	})

	return r
}
