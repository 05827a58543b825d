// Package config loads the synapview.yaml configuration and watches it
// for changes so layout tuning can be hot-reloaded into a running
// simulation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/synapview/synapview/pkg/layout"
)

// FileName is the config file looked up in the project directory.
const FileName = "synapview.yaml"

// Config represents the synapview.yaml configuration
type Config struct {
	// Layout tuning, hot-reloadable
	Layout *LayoutConfig `yaml:"layout,omitempty"`

	// Viewport clamps
	Viewport *ViewportConfig `yaml:"viewport,omitempty"`

	// Curve geometry
	Curves *CurvesConfig `yaml:"curves,omitempty"`

	// Interaction behavior
	Interaction *InteractionConfig `yaml:"interaction,omitempty"`

	// Live server configuration
	Server *ServerConfig `yaml:"server,omitempty"`

	// Backend graph service
	Backend *BackendConfig `yaml:"backend,omitempty"`
}

// LayoutConfig contains force-simulation tuning
type LayoutConfig struct {
	ChargeStrength    float64 `yaml:"chargeStrength,omitempty"`
	Theta             float64 `yaml:"theta,omitempty"`
	LinkDistance      float64 `yaml:"linkDistance,omitempty"`
	LinkStrength      float64 `yaml:"linkStrength,omitempty"`
	CenterStrength    float64 `yaml:"centerStrength,omitempty"`
	NodeSizeFactor    float64 `yaml:"nodeSizeFactor,omitempty"`
	VelocityDecay     float64 `yaml:"velocityDecay,omitempty"`
	AlphaMin          float64 `yaml:"alphaMin,omitempty"`
	AlphaDecay        float64 `yaml:"alphaDecay,omitempty"`
	RestartAlpha      float64 `yaml:"restartAlpha,omitempty"`
	RestartAlphaDecay float64 `yaml:"restartAlphaDecay,omitempty"`
	TickIntervalMs    int     `yaml:"tickIntervalMs,omitempty"`
}

// ViewportConfig contains pan/zoom clamps
type ViewportConfig struct {
	MinScale float64 `yaml:"minScale,omitempty"`
	MaxScale float64 `yaml:"maxScale,omitempty"`
}

// CurvesConfig contains parallel-edge geometry settings
type CurvesConfig struct {
	// Distance is the spacing between parallel edges, in layout units
	Distance float64 `yaml:"distance,omitempty"`
}

// InteractionConfig contains gesture behavior settings
type InteractionConfig struct {
	// DragRelease is "stay-pinned" or "release-free"
	DragRelease string `yaml:"dragRelease,omitempty"`
}

// ServerConfig contains live server settings
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// BackendConfig contains graph service settings
type BackendConfig struct {
	URL            string `yaml:"url,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// Load loads configuration from synapview.yaml in the given directory,
// falling back to defaults when the file does not exist.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, FileName)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", configPath, err)
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Save writes the configuration to synapview.yaml in the given directory.
func Save(config *Config, dir string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, FileName), data, 0644)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Layout: &LayoutConfig{
			ChargeStrength:    2500,
			Theta:             0.9,
			LinkDistance:      90,
			LinkStrength:      0.1,
			CenterStrength:    0.03,
			NodeSizeFactor:    4,
			VelocityDecay:     0.4,
			AlphaMin:          0.005,
			AlphaDecay:        0.025,
			RestartAlpha:      0.3,
			RestartAlphaDecay: 0.05,
			TickIntervalMs:    16,
		},
		Viewport: &ViewportConfig{
			MinScale: 0.1,
			MaxScale: 10,
		},
		Curves: &CurvesConfig{
			Distance: 30,
		},
		Interaction: &InteractionConfig{
			DragRelease: "stay-pinned",
		},
		Server: &ServerConfig{
			Host: "localhost",
			Port: 8090,
		},
		Backend: &BackendConfig{
			URL:            "http://localhost:7474",
			TimeoutSeconds: 10,
		},
	}
}

// applyDefaults applies default values to missing configuration
func applyDefaults(config *Config) {
	defaults := DefaultConfig()

	if config.Layout == nil {
		config.Layout = defaults.Layout
	} else {
		l, d := config.Layout, defaults.Layout
		if l.ChargeStrength == 0 {
			l.ChargeStrength = d.ChargeStrength
		}
		if l.Theta == 0 {
			l.Theta = d.Theta
		}
		if l.LinkDistance == 0 {
			l.LinkDistance = d.LinkDistance
		}
		if l.LinkStrength == 0 {
			l.LinkStrength = d.LinkStrength
		}
		if l.CenterStrength == 0 {
			l.CenterStrength = d.CenterStrength
		}
		if l.NodeSizeFactor == 0 {
			l.NodeSizeFactor = d.NodeSizeFactor
		}
		if l.VelocityDecay == 0 {
			l.VelocityDecay = d.VelocityDecay
		}
		if l.AlphaMin == 0 {
			l.AlphaMin = d.AlphaMin
		}
		if l.AlphaDecay == 0 {
			l.AlphaDecay = d.AlphaDecay
		}
		if l.RestartAlpha == 0 {
			l.RestartAlpha = d.RestartAlpha
		}
		if l.RestartAlphaDecay == 0 {
			l.RestartAlphaDecay = d.RestartAlphaDecay
		}
		if l.TickIntervalMs == 0 {
			l.TickIntervalMs = d.TickIntervalMs
		}
	}

	if config.Viewport == nil {
		config.Viewport = defaults.Viewport
	} else {
		if config.Viewport.MinScale == 0 {
			config.Viewport.MinScale = defaults.Viewport.MinScale
		}
		if config.Viewport.MaxScale == 0 {
			config.Viewport.MaxScale = defaults.Viewport.MaxScale
		}
	}

	if config.Curves == nil {
		config.Curves = defaults.Curves
	} else if config.Curves.Distance == 0 {
		config.Curves.Distance = defaults.Curves.Distance
	}

	if config.Interaction == nil {
		config.Interaction = defaults.Interaction
	} else if config.Interaction.DragRelease == "" {
		config.Interaction.DragRelease = defaults.Interaction.DragRelease
	}

	if config.Server == nil {
		config.Server = defaults.Server
	} else {
		if config.Server.Host == "" {
			config.Server.Host = defaults.Server.Host
		}
		if config.Server.Port == 0 {
			config.Server.Port = defaults.Server.Port
		}
	}

	if config.Backend == nil {
		config.Backend = defaults.Backend
	} else {
		if config.Backend.URL == "" {
			config.Backend.URL = defaults.Backend.URL
		}
		if config.Backend.TimeoutSeconds == 0 {
			config.Backend.TimeoutSeconds = defaults.Backend.TimeoutSeconds
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server port %d out of range", c.Server.Port)
	}
	if c.Viewport.MinScale >= c.Viewport.MaxScale {
		return fmt.Errorf("config: viewport minScale %v must be below maxScale %v",
			c.Viewport.MinScale, c.Viewport.MaxScale)
	}
	switch c.Interaction.DragRelease {
	case "stay-pinned", "release-free":
	default:
		return fmt.Errorf("config: unknown dragRelease %q (want stay-pinned or release-free)",
			c.Interaction.DragRelease)
	}
	if c.Layout.VelocityDecay <= 0 || c.Layout.VelocityDecay >= 1 {
		return fmt.Errorf("config: velocityDecay %v must be in (0, 1)", c.Layout.VelocityDecay)
	}
	return nil
}

// LayoutOptions converts the layout section into engine options.
func (c *Config) LayoutOptions() *layout.Options {
	l := c.Layout
	return &layout.Options{
		ChargeStrength:    l.ChargeStrength,
		Theta:             l.Theta,
		LinkDistance:      l.LinkDistance,
		LinkStrength:      l.LinkStrength,
		CenterStrength:    l.CenterStrength,
		NodeSizeFactor:    l.NodeSizeFactor,
		VelocityDecay:     l.VelocityDecay,
		AlphaMin:          l.AlphaMin,
		AlphaDecay:        l.AlphaDecay,
		RestartAlpha:      l.RestartAlpha,
		RestartAlphaDecay: l.RestartAlphaDecay,
		TickInterval:      time.Duration(l.TickIntervalMs) * time.Millisecond,
	}
}

// Addr returns the live server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Watch watches the config file in dir and calls onChange with the
// freshly loaded config after each modification. Events are debounced;
// editors often fire several writes per save. The returned function stops
// the watcher.
func Watch(dir string, onChange func(*Config)) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		var timer *time.Timer
		target := filepath.Join(dir, FileName)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(100*time.Millisecond, func() {
					cfg, err := Load(dir)
					if err != nil {
						// A half-written or invalid file; keep the old config.
						return
					}
					onChange(cfg)
				})
			case <-watcher.Errors:
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
