package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/synapview/synapview/cmd/synapview/internal/ui"
	"github.com/synapview/synapview/internal/config"
	"github.com/synapview/synapview/pkg/debug"
	"github.com/synapview/synapview/pkg/graph"
	"github.com/synapview/synapview/pkg/live"
	"github.com/synapview/synapview/pkg/remote"
	"github.com/synapview/synapview/pkg/viewer"
)

func newServeCommand() *cobra.Command {
	var (
		graphFile string
		configDir string
		withTUI   bool
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the live layout server",
		Long: `Serve loads a graph, runs the force simulation, and streams positions
to WebSocket clients at /live/{session}. Interaction commands from any
client (pin, drag, expand, viewport) apply to the shared layout.
Layout tuning in synapview.yaml hot-reloads while the server runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				debug.EnableLogging()
			}
			return runServe(graphFile, configDir, withTUI)
		},
	}

	cmd.Flags().StringVarP(&graphFile, "graph", "g", "", "initial graph file (.yaml or .json)")
	cmd.Flags().StringVarP(&configDir, "config-dir", "c", ".", "directory containing synapview.yaml")
	cmd.Flags().BoolVar(&withTUI, "tui", false, "show the terminal dashboard")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func runServe(graphFile, configDir string, withTUI bool) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var sg graph.Subgraph
	if graphFile != "" {
		sg, err = loadSubgraph(graphFile)
		if err != nil {
			return fmt.Errorf("load graph: %w", err)
		}
		log.Printf("📊 Loaded %d nodes, %d edges from %s", len(sg.Nodes), len(sg.Edges), graphFile)
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.Backend.TimeoutSeconds) * time.Second}
	fetcher := remote.NewClient(cfg.Backend.URL, httpClient)

	v, err := viewer.New(sg, viewer.Options{
		Layout:        cfg.LayoutOptions(),
		MinScale:      cfg.Viewport.MinScale,
		MaxScale:      cfg.Viewport.MaxScale,
		CurveDistance: cfg.Curves.Distance,
		DragRelease:   dragPolicy(cfg.Interaction.DragRelease),
		Fetcher:       fetcher,
	})
	if err != nil {
		return fmt.Errorf("build viewer: %w", err)
	}
	defer v.Close()

	server := live.NewServer(v)
	server.Start()
	defer server.Stop()

	v.Start()

	// Hot-reload layout tuning on config edits.
	stopWatch, err := config.Watch(configDir, func(next *config.Config) {
		v.Engine().SetOptions(next.LayoutOptions())
		v.Engine().Restart()
		log.Printf("🔄 Reloaded layout tuning from %s", config.FileName)
	})
	if err != nil {
		log.Printf("⚠️  Config watch disabled: %v", err)
	} else {
		defer stopWatch()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/live/", server.HandleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{Addr: cfg.Addr(), Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 Live server running at ws://%s/live/{session}", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if withTUI {
		// The dashboard owns the terminal until the user quits it; the
		// server keeps running underneath.
		if err := ui.RunDashboard(v, server); err != nil {
			log.Printf("⚠️  Dashboard exited: %v", err)
		}
	}

	select {
	case err := <-errCh:
		return err
	case <-sigChan:
		log.Println("👋 Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func dragPolicy(name string) viewer.DragReleasePolicy {
	if name == "release-free" {
		return viewer.ReleaseFree
	}
	return viewer.StayPinned
}

// loadSubgraph reads a node/edge payload from a YAML or JSON file.
func loadSubgraph(path string) (graph.Subgraph, error) {
	var sg graph.Subgraph
	data, err := os.ReadFile(path)
	if err != nil {
		return sg, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &sg)
	case ".json":
		err = json.Unmarshal(data, &sg)
	default:
		err = fmt.Errorf("unsupported graph format %q", filepath.Ext(path))
	}
	if err != nil {
		return sg, err
	}

	// Files that give explicit coordinates rarely bother with the placed
	// flag; honor the positions instead of reseeding them.
	for i := range sg.Nodes {
		n := &sg.Nodes[i]
		if !n.Placed && (n.X != 0 || n.Y != 0) {
			n.Placed = true
		}
	}
	return sg, nil
}
