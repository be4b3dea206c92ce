// Package server exposes the extracted figure data over HTTP: a JSON API
// for registries and resolved figures, plus static serving of the extracted
// images.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/paperlens/paperlens/internal/config"
	"github.com/paperlens/paperlens/internal/logger"
	"github.com/paperlens/paperlens/internal/metastore"
	"github.com/paperlens/paperlens/internal/resolve"
	"github.com/paperlens/paperlens/models"
)

// Server serves the figure API for one local data tree.
type Server struct {
	cfg      *config.Config
	resolver *resolve.Resolver
	log      logger.Logger
	mux      *http.ServeMux
}

// New builds the server and its routes.
func New(cfg *config.Config, resolver *resolve.Resolver, log logger.Logger) *Server {
	s := &Server{cfg: cfg, resolver: resolver, log: log, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /papers/{paper_id}/figures", s.handleFigures)
	s.mux.HandleFunc("GET /papers/{paper_id}/figures/{figure_id}", s.handleFigure)
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.DataRoot))))

	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("Listening on %s", s.cfg.ListenAddr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// figuresResponse is the registry listing shape.
type figuresResponse struct {
	PaperID string                 `json:"paper_id"`
	Figures []*models.FigureRecord `json:"figures"`
}

func (s *Server) handleFigures(w http.ResponseWriter, r *http.Request) {
	paperID := r.PathValue("paper_id")
	registry, err := metastore.LoadDir(s.cfg.PaperDir(paperID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "no figure data for paper "+paperID)
			return
		}
		s.log.Error("Loading registry for %s: %v", paperID, err)
		writeError(w, http.StatusInternalServerError, "loading figure data failed")
		return
	}

	figures := make([]*models.FigureRecord, 0, len(registry))
	for _, rec := range registry {
		figures = append(figures, rec)
	}
	sort.Slice(figures, func(i, j int) bool { return figures[i].ID < figures[j].ID })

	writeJSON(w, http.StatusOK, figuresResponse{PaperID: paperID, Figures: figures})
}

func (s *Server) handleFigure(w http.ResponseWriter, r *http.Request) {
	paperID := r.PathValue("paper_id")
	figureID := r.PathValue("figure_id")

	// A missing registry is fine; the resolver has its own fallbacks.
	registry, err := metastore.LoadDir(s.cfg.PaperDir(paperID))
	if err != nil {
		registry = nil
	}

	resolved, err := s.resolver.Resolve(r.Context(), figureID, paperID, registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
