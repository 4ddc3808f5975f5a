// Command brain-core runs the multi-tenant trading intelligence
// platform: it loads configuration, opens the SQLite store, wires the
// composition root in internal/app, starts the background evolution
// and billing schedules, and serves the HTTP/WebSocket API until an
// interrupt or terminate signal arrives.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brain-core/internal/api"
	"brain-core/internal/app"
	"brain-core/internal/config"
	"brain-core/internal/db"
	"brain-core/internal/monitor"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: load config: %v", err)
	}

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: open database: %v", err)
	}
	defer database.Close()

	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("main: apply migrations: %v", err)
	}

	a, err := app.New(cfg, database)
	if err != nil {
		log.Fatalf("main: wire app: %v", err)
	}
	if err := a.StartBackground(); err != nil {
		log.Fatalf("main: start background jobs: %v", err)
	}
	defer a.Shutdown()

	registry := prometheus.NewRegistry()
	metrics := monitor.NewSystemMetrics(registry)

	server := api.NewServer(a, metrics)
	server.Router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router,
	}

	go func() {
		log.Printf("main: listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("main: http server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("main: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("main: graceful shutdown: %v", err)
	}
}
