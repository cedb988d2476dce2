// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/hokm-live/hokm/internal/auth"
	"github.com/hokm-live/hokm/internal/cache"
	"github.com/hokm-live/hokm/internal/database"
	"github.com/hokm-live/hokm/internal/handlers"
	"github.com/hokm-live/hokm/internal/middleware"
)

func main() {
	auth.Init()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	// Postgres and Redis are optional backends: the server keeps working
	// without the server-side save copies or the action telemetry queue.
	if err := database.ConnectDB(); err != nil {
		logger.WithError(err).Warn("postgres unavailable, saved-game copies disabled")
	}
	if err := cache.ConnectRedis(); err != nil {
		logger.WithError(err).Warn("redis unavailable, action telemetry disabled")
	}

	srv, err := handlers.NewGameServer()
	if err != nil {
		log.Fatalf("server init failed: %v", err)
	}

	mux := http.NewServeMux()
	withLog := middleware.LogMiddleware(logger)

	mux.Handle("/create-game", withLog(handlers.CreateGameHandler(srv)))
	mux.Handle("/game-state", withLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			handlers.ExportStateHandler(srv)(w, r)
			return
		}
		handlers.ImportStateHandler(srv)(w, r)
	})))
	mux.Handle("/game/ws", withLog(handlers.GameWSHandler(logger, srv)))
	mux.HandleFunc("/health", handlers.HealthHandler)
	mux.HandleFunc("/version", handlers.VersionHandler)

	addr := ":8080"
	if port := os.Getenv("HOKM_SERVICE_PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
