// Package server wires the layer services, the REST API and the Datastar
// editor endpoints into one HTTP handler.
package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"reflect"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-layers/internal/api"
	"github.com/joeblew999/plat-layers/internal/api/editor"
	"github.com/joeblew999/plat-layers/internal/config"
	"github.com/joeblew999/plat-layers/internal/db"
	"github.com/joeblew999/plat-layers/internal/humastar"
	"github.com/joeblew999/plat-layers/internal/service"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	Tree    string // layer document, relative to DataDir
	// DBName names the DuckDB file; empty keeps the database in memory.
	DBName string
	Logger *slog.Logger
}

// Server is the layer HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
	links    *humastar.Links
	logger   *slog.Logger
}

// New creates a new layer server. A missing layer document starts an empty
// service that writes to the same path once configured.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	layers, err := loadLayers(cfg, logger)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	links := humastar.NewLinks()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-layers API", "1.0.0")
	humaConfig.Info.Description = "Map layer configuration API: layer tree lifecycle, symbology visibility and layer filters."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humago.New(mux, humaConfig),
		links:   links,
		logger:  logger,
		services: &api.Services{
			Layer:  layers,
			Source: service.NewSourceService(cfg.DataDir),
		},
	}

	conn, err := db.Get(db.Config{
		DataDir:    cfg.DataDir,
		DBName:     cfg.DBName,
		Extensions: []string{"json"},
	})
	if err != nil {
		logger.Warn("duckdb unavailable", "err", err)
	} else {
		s.db = conn
		s.services.DB = conn
	}

	s.routes()
	return s, nil
}

func loadLayers(cfg Config, logger *slog.Logger) (*service.LayerService, error) {
	opts := []service.Option{service.WithLogger(logger)}
	layers, err := service.LoadLayerService(cfg.DataDir, cfg.Tree, opts...)
	if !errors.Is(err, fs.ErrNotExist) {
		return layers, err
	}

	path := filepath.Join(cfg.DataDir, cfg.Tree)
	logger.Warn("layer document not found, starting empty", "path", path)
	doc := &config.Document{Service: "default"}
	return service.NewLayerService(doc, append(opts, service.WithSavePath(path))...)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the OpenAPI document of the server.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Layers returns the layer service.
func (s *Server) Layers() *service.LayerService {
	return s.services.Layer
}

// Close closes server resources.
func (s *Server) Close() error {
	return db.Close()
}

func (s *Server) routes() {
	// REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewInfoHandler(s.config.DataDir, s.services).RegisterRoutes(s.humaAPI)

	// Editor SSE routes using Huma + Datastar SDK
	editor.NewEventHandler(s.services.Layer).RegisterRoutes(s.humaAPI)
	editor.NewVisibilityHandler(s.services.Layer).RegisterRoutes(s.humaAPI)

	// Signal bodies are read raw, so register their schema explicitly.
	signalsType := reflect.TypeOf(editor.VisibilitySignals{})
	s.humaAPI.OpenAPI().Components.Schemas.Schema(signalsType, true, "")
	humastar.InjectExtensions(s.humaAPI, []humastar.DatastarSchemaConfig{
		{Type: signalsType, Prefix: "visibility", Endpoint: "/api/v1/editor/visibility"},
	})

	s.links.Build(s.humaAPI)

	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": s.services.Layer.ServiceID(),
		"status":  "running",
	})
}
