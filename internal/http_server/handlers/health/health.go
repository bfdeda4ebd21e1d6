package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	resp "github.com/ankitvars/ai-resume-builder/internal/lib/api/response"
	sl "github.com/ankitvars/ai-resume-builder/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is a named dependency probed by the readiness endpoint.
type Check struct {
	Name   string
	Pinger Pinger
}

// New answers 200 when every dependency responds and 503 otherwise.
func New(log *slog.Logger, checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.health.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, c := range checks {
			if err := c.Pinger.Ping(ctx); err != nil {
				log.Error("dependency is not ready", slog.String("dependency", c.Name), sl.Err(err))

				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, resp.Error(c.Name+" unavailable"))

				return
			}
		}

		render.JSON(w, r, resp.OK())
	}
}
