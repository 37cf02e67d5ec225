// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/AndresSweeneyRios/uno/internal/auth"
	"github.com/AndresSweeneyRios/uno/internal/cache"
	"github.com/AndresSweeneyRios/uno/internal/game"
	"github.com/AndresSweeneyRios/uno/internal/handlers"
	"github.com/AndresSweeneyRios/uno/internal/middleware"
)

func main() {
	auth.Init()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	// Move history is optional: without Redis the server plays games and
	// simply records nothing.
	if os.Getenv("REDIS_ADDR") != "" {
		if err := cache.ConnectRedis(); err != nil {
			logger.Warnf("Redis unavailable, move history disabled: %v", err)
		}
	}

	store := game.NewLobbyStore()
	if raw := os.Getenv("TURN_TIMER"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("invalid TURN_TIMER %q: %v", raw, err)
		}
		store.TurnTimeout = d
	}

	srv := handlers.NewGameServer(store)

	mux := http.NewServeMux()
	mux.Handle("/lobby/create", middleware.LogMiddleware(logger)(http.HandlerFunc(srv.CreateLobbyHandler)))
	mux.Handle("/lobby/list", middleware.LogMiddleware(logger)(http.HandlerFunc(srv.ListLobbiesHandler)))
	mux.Handle("/game/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(srv.ConnectWSHandler)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
