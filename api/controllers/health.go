package controllers

import (
	"context"
	"net/http"

	"github.com/calebreyes/taskdeck-backend/api/responses"
	"github.com/calebreyes/taskdeck-backend/pkg/config"
	pkgerrors "github.com/calebreyes/taskdeck-backend/pkg/errors"
	"github.com/calebreyes/taskdeck-backend/pkg/logger"
)

const envHeader = "X-Taskdeck-Env"

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks the datasources the API depends on. Nil pingers are
// skipped so partial deployments stay probeable.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP pinger) http.HandlerFunc {
	checks := []struct {
		name string
		ping pinger
	}{
		{"database", dbP},
		{"redis", redisP},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		for _, check := range checks {
			if check.ping == nil {
				continue
			}
			if err := check.ping.Ping(r.Context()); err != nil {
				ctx := logg.WithField(r.Context(), "dependency", check.name)
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.name+" unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
