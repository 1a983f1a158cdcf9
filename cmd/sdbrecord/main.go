// sdbrecord captures a live websocket market-data feed into daily SDB
// files, optionally archiving closed files to S3 and teeing records to
// Kafka.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/saleyn/sdb/capture"
	appconfig "github.com/saleyn/sdb/config"
	"github.com/saleyn/sdb/internal/channel"
	"github.com/saleyn/sdb/logger"
	"github.com/saleyn/sdb/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := appconfig.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.SDB.Name,
		"version": cfg.SDB.Version,
	}).Info("starting sdb recorder")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	channels := channel.NewChannels(cfg.Channels.RawBuffer, cfg.Channels.RecordBuffer)
	channels.StartMetricsReporting(ctx)

	var tee *writer.RecordTee
	if cfg.Storage.Kafka.Enabled {
		if tee, err = writer.NewRecordTee(cfg); err != nil {
			log.WithError(err).Error("failed to create kafka tee")
			os.Exit(1)
		}
	}

	var archiver *writer.Archiver
	if cfg.Storage.S3.Enabled {
		if archiver, err = writer.NewArchiver(cfg); err != nil {
			log.WithError(err).Error("failed to create s3 archiver")
			os.Exit(1)
		}
	} else {
		log.WithComponent("main").Info("S3 storage disabled; files stay local")
	}

	feed := capture.NewFeed(cfg, channels)
	normalizer := capture.NewNormalizer(channels)
	recorder := capture.NewRecorder(cfg, channels, tee, archiver)

	if err := feed.Start(ctx); err != nil {
		log.WithError(err).Error("feed failed to start")
		os.Exit(1)
	}
	if err := normalizer.Start(ctx); err != nil {
		log.WithError(err).Error("normalizer failed to start")
		os.Exit(1)
	}
	if err := recorder.Start(ctx); err != nil {
		log.WithError(err).Error("recorder failed to start")
		os.Exit(1)
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	log.Info("stopping feed")
	feed.Stop()

	log.Info("stopping normalizer")
	normalizer.Stop()

	log.Info("stopping recorder")
	recorder.Stop()

	if tee != nil {
		log.Info("closing kafka tee")
		tee.Close()
	}

	log.Info("sdb recorder stopped")
}
