package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/himanishpuri/MapVault/internal/config"
	"github.com/himanishpuri/MapVault/pkg/logger"
	"github.com/himanishpuri/MapVault/pkg/mapvault"
)

var (
	addr           string
	dbPath         string
	allowedOrigins string
)

func init() {
	flag.StringVar(&addr, "addr", "", "HTTP listen address (overrides server.addr)")
	flag.StringVar(&dbPath, "db", "", "Path to SQLite database (overrides storage.db_path)")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func parseOrigins(s string) []string {
	if s == "*" || strings.TrimSpace(s) == "" {
		return []string{"*"}
	}
	origins := strings.Split(s, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

func main() {
	flag.Parse()

	v := config.New()
	if addr != "" {
		v.Set("server.addr", addr)
	}
	if dbPath != "" {
		v.Set("storage.db_path", dbPath)
	}
	cfg, err := config.Load(v)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Server.LogLevel))
	lg := logger.GetLogger()

	service, err := mapvault.NewService(cfg.ServiceOptions(lg)...)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := NewServer(service, &ServerConfig{
		Addr:           cfg.Server.Addr,
		Backend:        cfg.Storage.Backend,
		AllowedOrigins: parseOrigins(allowedOrigins),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		server.logStartup()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Errorf("Server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	lg.Infof("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Errorf("Graceful shutdown failed: %v", err)
	}
}
