package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moodchat-be/internal/bootstrap"
	"moodchat-be/internal/config"
	"moodchat-be/internal/server"
	"moodchat-be/internal/tracer"
	"moodchat-be/pkg/database"
)

func main() {
	// 0. Initialize Tracer
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Recover state left behind by an unclean shutdown. Sessions with no
	// live connection are closed; stranded jobs are requeued inside
	// ClassifyService.Run before the first drain tick.
	if n, err := container.LobbyService.ReconcileOpenSessions(context.Background()); err != nil {
		log.Printf("Startup reconciliation error: %v", err)
	} else if n > 0 {
		log.Printf("Startup: closed %d orphaned sessions", n)
	}

	// 5. Start Background Services
	go func() {
		log.Println("Background: Starting Classification Drainer...")
		if err := container.ClassifyService.Run(context.Background()); err != nil {
			log.Printf("Background Classify Error: %v", err)
		}
	}()

	// 6. Initialize Server
	srv := server.New(cfg, container)

	// 7. Run Server, Wait for Shutdown Signal
	go func() {
		if err := srv.Run(); err != nil {
			log.Panicf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received, draining...")

	// Stop accepting connections first so no new jobs arrive, then give
	// in-flight classification work a bounded window to finish.
	if err := srv.Shutdown(); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := container.ClassifyService.Stop(stopCtx); err != nil {
		log.Printf("Classify drain did not finish in time: %v", err)
	}

	if container.NatsPublisher != nil {
		container.NatsPublisher.Close()
	}
	_ = container.Logger.Sync()

	log.Println("Shutdown complete")
}
