// Command shooter-relay starts the multiplayer shooter relay server.
//
// It supports two modes:
//  1. "serve" (default) – runs the HTTP server exposing the WebSocket event channel,
//     the REST polling API, and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server that proxies to a running relay's REST API
//
// Flags control the listen address, origin allow-list, per-connection limits,
// the stale polling session window, the gameplay rules file, an optional
// browser client directory, debug logging, and optional ngrok tunneling for
// easy external access during development.
// Every flag can also be set from the environment or a .env file.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/shooter-relay/api"
	"github.com/wricardo/shooter-relay/game/config"
	"github.com/wricardo/shooter-relay/game/engine"
	"github.com/wricardo/shooter-relay/game/relay"
	"github.com/wricardo/shooter-relay/game/session"
	"github.com/wricardo/shooter-relay/transport/mcp"
	"github.com/wricardo/shooter-relay/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Shooter Relay"
)

// serverConfig holds the settings of the serve mode
type serverConfig struct {
	Addr            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	RateBurst       int
	StaleAfter      time.Duration
	RulesFile       string
	StaticDir       string
	ShutdownTimeout time.Duration
	NgrokEnabled    bool
	NgrokAuth       string
	NgrokDomain     string
}

// main loads .env, parses flags and runs the selected mode
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "shooter-relay",
		Usage:   "Authoritative state relay for browser multiplayer shooters",
		Version: Version,
		Flags:   serveFlags(),
		Action:  runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server with WebSocket, REST polling and MCP endpoint (default)",
				Flags:  serveFlags(),
				Action: runServe,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp"},
				Usage:   "Run an MCP stdio server against a running relay",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Value:   "http://localhost:8080",
						Usage:   "Base URL of the relay REST API",
						Sources: cli.EnvVars("RELAY_API_URL"),
					},
					debugFlag(),
				},
				Action: runStdioMCP,
			},
		},
	}
}

func debugFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "debug",
		Usage:   "Enable debug logging",
		Sources: cli.EnvVars("RELAY_DEBUG"),
	}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Value:   ":8080",
			Usage:   "HTTP listen address",
			Sources: cli.EnvVars("RELAY_ADDR"),
		},
		&cli.StringSliceFlag{
			Name:    "allowed-origins",
			Value:   []string{"*"},
			Usage:   "Browser origins allowed to open a WebSocket (* allows all)",
			Sources: cli.EnvVars("RELAY_ALLOWED_ORIGINS"),
		},
		&cli.Int64Flag{
			Name:    "max-message-size",
			Value:   4096,
			Usage:   "Maximum inbound WebSocket frame size in bytes",
			Sources: cli.EnvVars("RELAY_MAX_MESSAGE_SIZE"),
		},
		&cli.Int64Flag{
			Name:    "rate-burst",
			Value:   60,
			Usage:   "Inbound frames allowed per second per connection",
			Sources: cli.EnvVars("RELAY_RATE_BURST"),
		},
		&cli.DurationFlag{
			Name:    "stale-after",
			Value:   30 * time.Second,
			Usage:   "Remove polling players not heard from for this long (0 disables)",
			Sources: cli.EnvVars("RELAY_STALE_AFTER"),
		},
		&cli.StringFlag{
			Name:    "rules-file",
			Usage:   "JSON file overriding the gameplay rules",
			Sources: cli.EnvVars("RELAY_RULES_FILE"),
		},
		&cli.StringFlag{
			Name:    "static-dir",
			Usage:   "Directory with the browser client to serve at / (optional)",
			Sources: cli.EnvVars("RELAY_STATIC_DIR"),
		},
		&cli.DurationFlag{
			Name:    "shutdown-timeout",
			Value:   10 * time.Second,
			Usage:   "Time allowed for connections to close on shutdown",
			Sources: cli.EnvVars("RELAY_SHUTDOWN_TIMEOUT"),
		},
		debugFlag(),
		&cli.BoolFlag{
			Name:    "ngrok",
			Usage:   "Enable ngrok tunnel",
			Sources: cli.EnvVars("NGROK_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "ngrok-auth",
			Usage:   "Ngrok auth token",
			Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "ngrok-domain",
			Usage:   "Custom ngrok domain (optional)",
			Sources: cli.EnvVars("NGROK_DOMAIN"),
		},
	}
}

// configFromCommand reads the serve flags
func configFromCommand(cmd *cli.Command) serverConfig {
	return serverConfig{
		Addr:            cmd.String("addr"),
		AllowedOrigins:  cmd.StringSlice("allowed-origins"),
		MaxMessageSize:  cmd.Int64("max-message-size"),
		RateBurst:       int(cmd.Int64("rate-burst")),
		StaleAfter:      cmd.Duration("stale-after"),
		RulesFile:       cmd.String("rules-file"),
		StaticDir:       cmd.String("static-dir"),
		ShutdownTimeout: cmd.Duration("shutdown-timeout"),
		NgrokEnabled:    cmd.Bool("ngrok"),
		NgrokAuth:       cmd.String("ngrok-auth"),
		NgrokDomain:     cmd.String("ngrok-domain"),
	}
}

func setupLogging(debug bool) {
	if debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}
}

// relayServer is the wired relay: registry, hub, relay and HTTP routes
type relayServer struct {
	relay   *relay.Relay
	hub     *websocket.Hub
	handler http.Handler
}

// initializeRelay loads the rules and wires the registry, the WebSocket hub,
// the relay, the REST API and the /mcp endpoint. The hub is not started.
func initializeRelay(cfg serverConfig) (*relayServer, error) {
	rules, err := config.Resolve(cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	eng, err := engine.NewEngine(rules)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	hub := websocket.NewHub(websocket.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		MaxMessageSize: cfg.MaxMessageSize,
		RateBurst:      cfg.RateBurst,
	})
	r := relay.New(session.NewManager(eng), hub)
	hub.SetHandler(r)

	apiServer := api.NewServer(r, http.HandlerFunc(hub.ServeWS))
	if cfg.StaticDir != "" {
		apiServer.ServeStatic(cfg.StaticDir)
		log.Printf("Serving browser client from %s", cfg.StaticDir)
	}
	mcpClient := mcp.NewClient(localBaseURL(cfg.Addr))

	// Create main router that combines API and MCP
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.Handle("/mcp", mcpClient)

	return &relayServer{relay: r, hub: hub, handler: mainRouter}, nil
}

// localBaseURL returns the loopback URL the in-process MCP client uses to
// reach the REST API
func localBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// runServe starts the HTTP server and blocks until a shutdown signal.
// If ngrok is enabled it also provisions a public tunnel.
func runServe(ctx context.Context, cmd *cli.Command) error {
	setupLogging(cmd.Bool("debug"))
	cfg := configFromCommand(cmd)

	log.Printf("Starting %s v%s", AppName, Version)

	srv, err := initializeRelay(cfg)
	if err != nil {
		return err
	}
	go srv.hub.Run()

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	var wg sync.WaitGroup
	serverErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("HTTP server listening on %s", cfg.Addr)
		log.Printf("WebSocket: ws://%s/ws", cfg.Addr)
		log.Printf("Polling API: http://%s/state, http://%s/players", cfg.Addr, cfg.Addr)
		log.Printf("MCP endpoint: http://%s/mcp", cfg.Addr)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	if cfg.StaleAfter > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			staleSessionRoutine(ctx, srv.relay, cfg.StaleAfter)
		}()
	}

	if cfg.NgrokEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg, srv.handler)
		}()
	}

	// Wait for shutdown signal
	select {
	case sig := <-stop:
		log.Printf("Received signal: %v. Shutting down...", sig)
	case err = <-serverErr:
		log.Printf("HTTP server failed: %v", err)
	}
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := srv.hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Printf("WebSocket hub shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("Server stopped")
	return err
}

// staleSessionRoutine periodically removes polling players that have not
// posted their state within maxAge
func staleSessionRoutine(ctx context.Context, r *relay.Relay, maxAge time.Duration) {
	interval := maxAge / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ReapStale(maxAge)
		}
	}
}

// runNgrok serves handler through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, cfg serverConfig, handler http.Handler) {
	if cfg.NgrokAuth == "" {
		log.Println("WARNING: Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
		log.Printf("Using custom ngrok domain: %s", cfg.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.NgrokAuth))
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}

	ngrokURL := tun.URL()
	log.Printf("Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  WebSocket (ngrok): %s/ws", ngrokURL)
	log.Printf("  Polling API (ngrok): %s/state", ngrokURL)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	tunnelServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		tunnelServer.Close()
	}()

	if err := tunnelServer.Serve(tun); err != nil && err != http.ErrServerClosed {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// runStdioMCP runs an MCP stdio server proxying to the relay at --api-url
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	setupLogging(cmd.Bool("debug"))

	baseURL := cmd.String("api-url")
	mcpClient := mcp.NewClient(baseURL)

	log.Printf("MCP stdio server ready (relay API: %s)", baseURL)
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
