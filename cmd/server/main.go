/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the bookshop ledger server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load environment configuration (.env honored), parse flags
  2. Open the SQLite store and migrate the schema
  3. Seed the sample catalog when the database is empty
  4. Wire engine, coordinator, and handlers (explicit injection,
     no ambient singletons)
  5. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT env)
  -db      SQLite database path (overrides DB_PATH env)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the database connection and event publisher

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment configuration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridian/bookledger/api"
	"github.com/meridian/bookledger/config"
	"github.com/meridian/bookledger/events"
	"github.com/meridian/bookledger/events/kafka"
	"github.com/meridian/bookledger/ledger"
	"github.com/meridian/bookledger/purchase"
	"github.com/meridian/bookledger/store/sqlite"
)

func main() {
	cfg := config.Load()

	port := flag.String("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path (':memory:' for in-memory)")
	flag.Parse()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if cfg.SeedSample {
		if err := store.Seed(ctx); err != nil {
			log.Fatalf("Failed to seed sample data: %v", err)
		}
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers)
		defer kp.Close()
		publisher = kp
		log.Printf("Publishing commit events to %v", cfg.KafkaBrokers)
	}

	engine := ledger.NewEngine(store, ledger.WithPublisher(publisher))
	coordinator := purchase.NewCoordinator(store, engine, store)
	handler := api.NewHandler(store, engine, store, coordinator)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", *port),
		Handler: api.NewRouter(handler),
	}

	go func() {
		log.Printf("Bookshop ledger listening on :%s (db: %s)", *port, *dbPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
