package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"qa-explainer-video/internal/domain"
	"qa-explainer-video/internal/domain/model"
	"qa-explainer-video/internal/infra/logging"
	"qa-explainer-video/internal/usecase"
)

// Server exposes the explainer API: async submit, polling, artifact
// serving for the local backend, and a JWT-guarded admin surface.
type Server struct {
	uc             usecase.ExplainerUseCase
	limiter        Limiter
	submitPerMin   int
	adminSecret    string
	localMediaDir  string // non-empty only for the local storage backend
	requestTimeout time.Duration
	log            *zerolog.Logger
}

func NewServer(
	uc usecase.ExplainerUseCase,
	limiter Limiter,
	submitPerMin int,
	adminSecret string,
	localMediaDir string,
	requestTimeout time.Duration,
	log *zerolog.Logger,
) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &Server{
		uc:             uc,
		limiter:        limiter,
		submitPerMin:   submitPerMin,
		adminSecret:    adminSecret,
		localMediaDir:  localMediaDir,
		requestTimeout: requestTimeout,
		log:            log,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(RateLimit(s.limiter, s.submitPerMin, func(r *http.Request) string {
			return "rate_limit:submit:" + ClientIP(r)
		})).Post("/explainers", s.handleSubmit)
		r.Get("/explainers/{id}", s.handleStatus)

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuth(s.adminSecret))
			r.Get("/jobs", s.handleAdminList)
			r.Post("/jobs/{id}/requeue", s.handleAdminRequeue)
		})
	})

	if s.localMediaDir != "" {
		fs := http.StripPrefix("/videos/", http.FileServer(http.Dir(s.localMediaDir)))
		r.Get("/videos/*", fs.ServeHTTP)
	}

	return Chain(r, TraceID(s.log), RequestLog(s.log), Recover(s.log), Timeout(s.requestTimeout))
}

type submitRequest struct {
	Question   string `json:"question"`
	UserAnswer string `json:"user_answer"`
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Key    string `json:"key"`
	Status string `json:"status"`
	Poll   string `json:"poll"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}

	job, created, err := s.uc.Submit(r.Context(), req.Question, req.UserAnswer)
	if err != nil {
		s.mapError(w, r, err)
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusAccepted
	}
	s.writeJSON(w, code, submitResponse{
		JobID:  job.ID,
		Key:    job.Key,
		Status: string(job.Status),
		Poll:   "/api/v1/explainers/" + job.ID,
	})
}

type statusResponse struct {
	JobID     string               `json:"job_id"`
	Status    string               `json:"status"`
	VideoPath string               `json:"video_path,omitempty"`
	Resources *model.ResourceLinks `json:"resources,omitempty"`
	Error     string               `json:"error,omitempty"`
	Attempts  int                  `json:"attempts,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, sidecar, err := s.uc.Status(r.Context(), id)
	if err != nil {
		s.mapError(w, r, err)
		return
	}

	resp := statusResponse{JobID: job.ID, Status: string(job.Status)}
	switch job.Status {
	case model.RenderJobStatusCompleted:
		resp.VideoPath = job.VideoURL
		if sidecar != nil {
			resp.Resources = &sidecar.Resources
		}
	case model.RenderJobStatusFailed:
		resp.Error = job.LastError
		resp.Attempts = job.Attempts
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := s.uc.List(r.Context(), limit)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	type row struct {
		JobID     string    `json:"job_id"`
		Key       string    `json:"key"`
		Status    string    `json:"status"`
		Attempts  int       `json:"attempts"`
		LastError string    `json:"last_error,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]row, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, row{
			JobID:     j.ID,
			Key:       j.Key,
			Status:    string(j.Status),
			Attempts:  j.Attempts,
			LastError: j.LastError,
			CreatedAt: j.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminRequeue(w http.ResponseWriter, r *http.Request) {
	job, err := s.uc.Requeue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, submitResponse{
		JobID:  job.ID,
		Key:    job.Key,
		Status: string(job.Status),
		Poll:   "/api/v1/explainers/" + job.ID,
	})
}

func (s *Server) mapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyPrompt), errors.Is(err, domain.ErrInvalidArgument):
		s.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, "job not found")
	case errors.Is(err, domain.ErrJobBusy):
		s.writeError(w, r, http.StatusConflict, "submission in progress, retry shortly")
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("request failed")
		s.writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}
