// ABOUTME: Entry point for the lantern session gateway
// ABOUTME: Wires config, store, hub, provider, session manager, and dashboard API

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/lantern/internal/config"
	"github.com/2389/lantern/internal/gateway"
	"github.com/2389/lantern/internal/hub"
	"github.com/2389/lantern/internal/provider"
	"github.com/2389/lantern/internal/session"
	"github.com/2389/lantern/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _             _
| | __ _ _ __ | |_ ___ _ __ _ __
| |/ _' | '_ \| __/ _ \ '__| '_ \
| | (_| | | | | ||  __/ |  | | | |
|_|\__,_|_| |_|\__\___|_|  |_| |_|
`

const exampleConfig = `# lantern configuration
server:
  http_addr: "127.0.0.1:3000"

store:
  path: "data/chats.json"

session:
  dir: "data/session"
  # responder_rules: "responder.toml"

provider:
  kind: none # or "matrix"
  # homeserver: "https://matrix.example.org"
  # user_id: "@bot:example.org"
  # access_token: "${LANTERN_ACCESS_TOKEN}"

logging:
  level: "info"
  format: "text"
`

// getConfigPath returns the path to the lantern config file.
// Priority: LANTERN_CONFIG env var > XDG_CONFIG_HOME/lantern/lantern.yaml >
// ~/.config/lantern/lantern.yaml
func getConfigPath() string {
	if envPath := os.Getenv("LANTERN_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "lantern.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "lantern", "lantern.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: lantern <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the session gateway")
		fmt.Println("  init     Create an example config file")
		fmt.Println("  health   Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Store:    %s\n", cfg.Store.Path)
	green.Print("    ▶ ")
	fmt.Printf("Provider: %s\n", cfg.Provider.Kind)
	fmt.Println()

	logger.Info("starting lantern",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"provider", cfg.Provider.Kind,
	)

	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return fmt.Errorf("opening chat store: %w", err)
	}

	h := hub.New(logger)
	defer h.Close()

	capability, err := buildCapability(cfg, logger)
	if err != nil {
		return err
	}

	responder, err := buildResponder(cfg, logger)
	if err != nil {
		return err
	}

	mgr := session.New(ctx, capability, st, h, responder, logger)
	defer mgr.Disconnect()

	// The session starts in the background: a provider failure leaves the
	// dashboard serving stored history and a disconnected status.
	if cfg.Provider.Kind != "none" {
		go mgr.Start(ctx)
	} else {
		logger.Warn("no provider configured, serving stored history only")
	}

	gw := gateway.New(cfg.Server.HTTPAddr, st, h, mgr, logger)
	return gw.Run(ctx)
}

func buildCapability(cfg *config.Config, logger *slog.Logger) (provider.Capability, error) {
	switch cfg.Provider.Kind {
	case "matrix":
		return provider.NewMatrix(provider.MatrixConfig{
			Homeserver:  cfg.Provider.Homeserver,
			UserID:      cfg.Provider.UserID,
			AccessToken: cfg.Provider.AccessToken,
		}, cfg.Session.Dir, logger), nil
	case "none":
		return provider.Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Provider.Kind)
	}
}

func buildResponder(cfg *config.Config, logger *slog.Logger) (*session.Responder, error) {
	if cfg.Session.ResponderRules == "" {
		return session.DefaultResponder(), nil
	}

	responder, err := session.LoadResponder(cfg.Session.ResponderRules)
	if err != nil {
		return nil, fmt.Errorf("loading responder rules: %w", err)
	}
	logger.Info("responder rules loaded", "path", cfg.Session.ResponderRules)
	return responder, nil
}

func runInit() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("✓ ")
	fmt.Printf("Created %s\n", configPath)
	return nil
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/healthz", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
