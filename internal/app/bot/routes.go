package bot

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nkorotkov/gym-access-bot/internal/lib/sl"
	"github.com/nkorotkov/gym-access-bot/internal/models"
	sessionservice "github.com/nkorotkov/gym-access-bot/internal/services/session"
)

// RegisterRoutes регистрирует служебные маршруты: проверку живости,
// публичный статус зала и метрики.
func RegisterRoutes(r chi.Router, logger *slog.Logger, sessions *sessionservice.SessionService) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", statusHandler(logger, sessions))
	})

	r.Handle("/metrics", promhttp.Handler())
}

type statusResponse struct {
	Open         bool       `json:"open"`
	Captain      string     `json:"captain,omitempty"`
	Participants int        `json:"participants,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
}

// statusHandler отдаёт публичный снимок состояния зала, без
// персональных данных кроме имени капитана.
func statusHandler(logger *slog.Logger, sessions *sessionservice.SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := sessions.Status(r.Context())
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				render.JSON(w, r, statusResponse{Open: false})
				return
			}
			logger.Error("failed to load session status", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "internal error"})
			return
		}

		render.JSON(w, r, statusResponse{
			Open:         true,
			Captain:      st.Captain.Name,
			Participants: len(st.Participants),
			StartedAt:    &st.Session.StartedAt,
		})
	}
}
