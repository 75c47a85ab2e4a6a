package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"memory-service/internal/common/logging"
	"memory-service/internal/config"
	"memory-service/internal/health"
	"memory-service/internal/memory"
	"memory-service/internal/server"
)

func main() {
	_ = godotenv.Load()

	logging.InitGlobalLogger()
	defer logging.MustSync()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	factory := memory.NewFactory(cfg.MemoryFactoryConfig())
	defer func() {
		if err := factory.CloseAll(); err != nil {
			logging.Error("Failed to close memory instances", err)
		}
	}()

	ctx := context.Background()
	longTerm, err := factory.GetLongTermMemory(ctx, "health-check", nil)
	if err != nil {
		log.Fatalf("Failed to create long-term memory: %v", err)
	}
	shortTerm, err := factory.GetShortTermMemory("health-check", nil)
	if err != nil {
		log.Fatalf("Failed to create short-term memory: %v", err)
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", health.Handler(longTerm, shortTerm)).Methods("GET")

	srv := server.New(router, cfg.Port, cfg.TLSCertFile, cfg.TLSKeyFile)
	srv.Start()
	logging.Info("Memory service started", logging.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server forced to shutdown", err)
	}
}
