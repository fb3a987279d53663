// Package server exposes the challenge service over HTTP: the rotating
// daily challenge, signed solution submission, saved-point reporting and
// the public guess log.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keymaze/go-keymaze/internal/challenge"
	"github.com/keymaze/go-keymaze/internal/crypto/solution"
	"github.com/keymaze/go-keymaze/pkg/crypto/curve"
)

// Server serves the challenge API.
type Server struct {
	log *zap.SugaredLogger
	cfg Config
	svc *challenge.Service
}

// New wires a Server around a challenge service.
func New(svc *challenge.Service, cfg Config, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{log: log, cfg: cfg, svc: svc}
}

// Handler builds the router with the full middleware stack. The rate limit
// applies to the solution endpoint only; reads stay unthrottled.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(s.cfg.RequestTimeout.Duration))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/daily/", s.handleDaily)
		r.Route("/challenges/{uuid}", func(r chi.Router) {
			r.Get("/", s.handleChallenge)
			r.With(RateLimit(s.cfg.RateLimit, s.cfg.RateWindow.Duration)).
				Post("/solution/", s.handleSolution)
			r.Post("/save/", s.handleSave)
		})
		r.Get("/guesses/", s.handleGuesses)
		r.Get("/guesses/{uuid}/", s.handleGuess)
	})

	return r
}

// solutionRequest is the body of POST /api/challenges/{uuid}/solution/.
type solutionRequest struct {
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

// saveRequest is the body of POST /api/challenges/{uuid}/save/.
type saveRequest struct {
	PublicKey string `json:"publicKey"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "keymaze"})
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	ch, err := s.svc.Daily()
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	ch, err := s.svc.Get(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (s *Server) handleSolution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	var req solutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	guess, err := s.svc.SubmitSolution(id, req.PublicKey, req.Signature)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, guess)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	save, err := s.svc.RecordSave(id, req.PublicKey)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, save)
}

func (s *Server) handleGuesses(w http.ResponseWriter, r *http.Request) {
	guesses, err := s.svc.Guesses()
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, guesses)
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	guess, err := s.svc.GetGuess(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, guess)
}

// respondError maps service errors onto HTTP statuses.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, challenge.ErrChallengeNotFound),
		errors.Is(err, challenge.ErrGuessNotFound),
		errors.Is(err, challenge.ErrPoolExhausted):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, challenge.ErrChallengeInactive):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, challenge.ErrInvalidPublicKey),
		errors.Is(err, solution.ErrInvalidSignature),
		errors.Is(err, curve.ErrInvalidPoint):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Errorw("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "invalid uuid", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already out; an encode failure here can only be
	// logged by the request logger seeing a short write.
	_ = json.NewEncoder(w).Encode(v)
}
