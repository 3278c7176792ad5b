package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/vouchers-backend/api/responses"
	"github.com/angelmondragon/vouchers-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/vouchers-backend/pkg/errors"
	"github.com/angelmondragon/vouchers-backend/pkg/logger"
)

const readyCheckTimeout = 5 * time.Second

// Pinger is the readiness surface each hard dependency exposes.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Vouchers-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every hard dependency. Any failure flips readiness so the
// instance is pulled from rotation instead of serving errors.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Vouchers-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		checks := map[string]string{}
		failed := false
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "down"
				failed = true
				if logg != nil {
					logCtx := logg.WithField(ctx, "dependency", name)
					logg.Error(logCtx, "readiness check failed", err)
				}
				continue
			}
			checks[name] = "up"
		}

		if failed {
			err := pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(checks)
			responses.WriteError(ctx, nil, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
