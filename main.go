package main

import (
	"log"
	"net/http"
	"time"

	"article-gate/config"
	"article-gate/services"
	"article-gate/storage"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

var mutationsCounter *prometheus.CounterVec

func init() {
	mutationsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "article_gate_mutations_total",
			Help: "Total number of applied mutations, by entity and operation.",
		},
		[]string{"entity", "op"},
	)
	prometheus.MustRegister(mutationsCounter)
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to article gate database", zap.Error(err))
	}
	logging.Info("Successfully connected to article gate database.")

	store := storage.New(db)
	logging.Info("Running database auto-migration...")
	if err := store.Migrate(); err != nil {
		logging.Fatal("Database auto-migration failed", zap.Error(err))
	}

	// Setup Auth Gate
	gate := services.NewAuthGate(cfg, logging)

	// Optionaler S3-Client für Snapshot-Exporte
	var s3Client *awss3.Client
	if cfg.ExportConfigured() {
		s3Client, err = storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		logging.Info("Snapshot export enabled", zap.String("bucket", cfg.ExportS3Bucket))
	} else {
		logging.Info("Snapshot export disabled (no EXPORT_S3_URL configured)")
	}

	router := newRouter(cfg, store, gate, s3Client, logging)

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}
