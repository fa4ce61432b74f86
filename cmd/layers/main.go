package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-layers/internal/config"
	"github.com/joeblew999/plat-layers/internal/layertree"
	"github.com/joeblew999/plat-layers/internal/server"
	"github.com/joeblew999/plat-layers/internal/service"
)

// Options defines all CLI flags and env vars for the layer server.
// Flags: --host, --port, --data-dir, --tree, --db, --log-level
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_TREE, ...
type Options struct {
	Host     string `doc:"Host to bind to" default:"0.0.0.0"`
	Port     int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir  string `doc:"Directory for layer documents and sources" default:".data"`
	Tree     string `doc:"Layer document, relative to the data directory" default:"layers.yaml"`
	DB       string `doc:"DuckDB database name under data-dir/duckdb, empty for in-memory" default:"layers"`
	LogLevel string `doc:"Log level: debug, info, warn or error" default:"info"`
}

func newLogger(opts *Options) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func newServer(opts *Options) *server.Server {
	srv, err := server.New(server.Config{
		Host:    opts.Host,
		Port:    fmt.Sprintf("%d", opts.Port),
		DataDir: opts.DataDir,
		Tree:    opts.Tree,
		DBName:  opts.DB,
		Logger:  newLogger(opts),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting server: %v\n", err)
		os.Exit(1)
	}
	return srv
}

// documentPath returns the first argument, or the configured layer document.
func documentPath(args []string, opts *Options) string {
	if len(args) > 0 {
		return args[0]
	}
	return filepath.Join(opts.DataDir, opts.Tree)
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		srv := newServer(opts)

		hooks.OnStart(func() {
			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-layers API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Service: %s\n", srv.Layers().ServiceID())
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Events:  %s/api/v1/events\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				slog.Error("server error", "err", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			srv.Close()
		})
	})

	cli.Root().Use = "layers"
	cli.Root().Short = "Map layer configuration server"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.DB = ""
			srv := newServer(opts)
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// validate subcommand: schema-check a layer document
	validateCmd := &cobra.Command{
		Use:   "validate [document]",
		Short: "Validate a layer document against the layer schema",
		Args:  cobra.MaximumNArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			path := documentPath(args, opts)
			doc, err := config.Load(path)
			if err == nil {
				_, err = doc.Build()
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s: ok\n", path)
		}),
	}
	cli.Root().AddCommand(validateCmd)

	// compile subcommand: print the final filter of every layer
	compileCmd := &cobra.Command{
		Use:   "compile [document]",
		Short: "Print the final filter of every layer in a layer document",
		Args:  cobra.MaximumNArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			logger := newLogger(opts)
			doc, err := config.Load(documentPath(args, opts))
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				os.Exit(1)
			}
			layers, err := service.NewLayerService(doc, service.WithLogger(logger))
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				os.Exit(1)
			}
			for _, info := range layers.List() {
				if info.Kind != layertree.LayerKind.String() {
					continue
				}
				lf, err := layers.Filter(info.Path)
				if err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", info.Path, err)
					continue
				}
				fmt.Printf("%s\t%s\n", lf.Path, lf.Filter)
			}
		}),
	}
	cli.Root().AddCommand(compileCmd)

	cli.Run()
}
