package main

import (
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pragun-bansal/expense-tracker-sub000/internal/events/kafka"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/middleware"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/service"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/storage/sqlite"
	"github.com/pragun-bansal/expense-tracker-sub000/pkg/logging"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	logging.Setup()

	dbPath := getEnv("DB_PATH", "./data/ledger.db")
	store, err := sqlite.New(dbPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", dbPath)

	var opts []service.Option
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		publisher := kafka.NewPublisher(strings.Split(brokers, ","))
		defer publisher.Close()
		opts = append(opts, service.WithPublisher(publisher))
		slog.Info("Kafka notifier enabled", "brokers", brokers)
	}
	if getEnv("LEGACY_FALLBACK", "") == "true" {
		opts = append(opts, service.WithLegacyFallback(true))
		slog.Warn("Legacy heuristic reversal enabled")
	}

	svc := service.NewLedgerService(store, opts...)
	api := newAPI(svc)

	mux := http.NewServeMux()
	api.register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	addr := getEnv("HTTP_ADDR", ":8080")
	slog.Info("Ledger server starting", "address", addr)
	if err := http.ListenAndServe(addr, middleware.Logging(mux)); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
