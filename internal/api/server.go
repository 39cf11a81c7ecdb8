package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/baxromumarov/uni-recruit/internal/core"
	"github.com/baxromumarov/uni-recruit/internal/extract"
	"github.com/baxromumarov/uni-recruit/internal/store"
)

// Reader is the read side of the storage backends.
type Reader interface {
	ListJobs(ctx context.Context, f store.JobFilter) ([]store.Job, int, error)
	ListSources(ctx context.Context, limit, offset int) ([]store.Source, int, error)
	Metadata(ctx context.Context) (store.Metadata, error)
}

type Server struct {
	router    *chi.Mux
	reader    Reader
	runner    *core.Runner
	extractor *extract.Extractor
}

func NewServer(reader Reader, runner *core.Runner, extractor *extract.Extractor) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		reader:    reader,
		runner:    runner,
		extractor: extractor,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/jobs", s.handleListJobs)
	s.router.Get("/sources", s.handleListSources)
	s.router.Get("/stats", s.handleStats)
	s.router.Post("/extract", s.handleExtract)
	s.router.Post("/runs/{kind}", s.handleStartRun)
}

// ServeStatic mounts dir at / when it exists, for the published job board.
func (s *Server) ServeStatic(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	FileServer(s.router, "/", http.Dir(dir))
	return true
}

func FileServer(r chi.Router, path string, root http.FileSystem) {
	if strings.ContainsAny(path, "{}*") {
		panic("FileServer does not permit any URL parameters.")
	}

	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", http.StatusMovedPermanently).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		pathPrefix := strings.TrimSuffix(rctx.RoutePattern(), "/*")
		fs := http.StripPrefix(pathPrefix, http.FileServer(root))
		fs.ServeHTTP(w, r)
	})
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
