package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ankitvars/ai-resume-builder/internal/auth"
	resp "github.com/ankitvars/ai-resume-builder/internal/lib/api/response"
	sl "github.com/ankitvars/ai-resume-builder/internal/lib/logger"
	"github.com/ankitvars/ai-resume-builder/internal/middleware/authenticate"
	"github.com/ankitvars/ai-resume-builder/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Response struct {
	resp.Response
	User User `json:"user"`
}

type SessionProvider interface {
	Session(ctx context.Context, userID uuid.UUID) (models.User, error)
}

// New must sit behind authenticate.New.
func New(log *slog.Logger, provider SessionProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.session.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		claims, ok := authenticate.ClaimsFromContext(r.Context())
		if !ok {
			log.Error("no session claims in context")

			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("Unauthorized"))

			return
		}

		userID, err := claims.UserID()
		if err != nil {
			log.Warn("bad session subject", sl.Err(err))

			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("Unauthorized"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, err := provider.Session(ctx, userID)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				log.Info("session user no longer exists", slog.String("uid", userID.String()))

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Unauthorized"))

				return
			}

			log.Error("failed to load session user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		ResponseOK(w, r, user)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, user models.User) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
		User: User{
			ID:    user.ID.String(),
			Email: user.Email,
			Name:  user.Name,
		},
	})
}
