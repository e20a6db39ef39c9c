package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"pavolctl/internal/domain"
	"pavolctl/internal/usecase"
)

// Server is a primary adapter that exposes the volume use case over HTTP.
type Server struct {
	usecase usecase.VolumeUseCase
	hub     *Hub
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates the HTTP server bound to addr.
// hub may be nil, in which case /ws is not served.
func NewServer(uc usecase.VolumeUseCase, hub *Hub, addr string, logger *slog.Logger) *Server {
	srv := &Server{usecase: uc, hub: hub, logger: logger}

	srv.server = &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv
}

// Handler returns the routed handler, wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/volumes", s.handleVolumes)
	mux.HandleFunc("/api/connection", s.handleConnection)
	if s.hub != nil {
		mux.HandleFunc("/ws", s.hub.ServeWS)
	}
	mux.Handle("/", http.FileServer(http.FS(staticContent)))
	return loggingMiddleware(s.logger, mux)
}

// Start blocks and serves HTTP traffic.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleVolumes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		snap, err := s.usecase.GetVolumes(r.Context())
		if err != nil {
			respondError(w, http.StatusBadGateway, err)
			return
		}
		respondJSON(w, http.StatusOK, snap)

	case http.MethodPut:
		var req updatePayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errors.New("invalid JSON"))
			return
		}
		if req.Sink == nil && req.Source == nil {
			respondError(w, http.StatusBadRequest, errors.New("sink or source is required"))
			return
		}
		// Validate both before sending either.
		for _, p := range []*float64{req.Sink, req.Source} {
			if p == nil {
				continue
			}
			if err := domain.ValidatePercent(*p); err != nil {
				respondError(w, http.StatusBadRequest, err)
				return
			}
		}
		if req.Sink != nil {
			_ = s.usecase.SetVolume(*req.Sink, domain.Sink)
		}
		if req.Source != nil {
			_ = s.usecase.SetVolume(*req.Source, domain.Source)
		}
		respondJSON(w, http.StatusAccepted, connectionView(s.usecase.ConnState()))

	default:
		w.Header().Set("Allow", "GET, PUT")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, connectionView(s.usecase.ConnState()))
}

type updatePayload struct {
	Sink   *float64 `json:"sink"`
	Source *float64 `json:"source"`
}

type connectionPayload struct {
	State string    `json:"state"`
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

func connectionView(sc domain.StateChange) connectionPayload {
	view := connectionPayload{State: sc.State.String(), At: sc.At}
	if sc.Err != nil {
		view.Error = sc.Err.Error()
	}
	return view
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Warn("encode JSON", "error", err)
	}
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("http request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}
