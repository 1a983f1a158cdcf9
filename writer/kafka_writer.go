package writer

import (
	"context"
	"encoding/json"
	"fmt"

	kafka "github.com/segmentio/kafka-go"

	appconfig "github.com/saleyn/sdb/config"
	"github.com/saleyn/sdb/logger"
	"github.com/saleyn/sdb/models"
)

// RecordTee publishes every recorded feed event to a Kafka topic alongside
// the SDB file, keyed by symbol so per-instrument ordering is preserved.
type RecordTee struct {
	config *appconfig.Config
	writer *kafka.Writer
	log    *logger.Log
}

func NewRecordTee(cfg *appconfig.Config) (*RecordTee, error) {
	if len(cfg.Storage.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	t := &RecordTee{
		config: cfg,
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Storage.Kafka.Brokers...),
			Topic:    cfg.Storage.Kafka.Topic,
			Balancer: &kafka.Hash{},
		},
		log: logger.GetLogger(),
	}
	t.log.WithComponent("kafka_tee").WithFields(logger.Fields{
		"brokers": cfg.Storage.Kafka.Brokers,
		"topic":   cfg.Storage.Kafka.Topic,
	}).Debug("kafka tee initialized")
	return t, nil
}

// Publish sends one record. Failures are logged, not propagated: the SDB
// file remains the source of truth.
func (t *RecordTee) Publish(ctx context.Context, rec models.FeedRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		t.log.WithComponent("kafka_tee").WithError(err).Warn("failed to marshal record")
		return
	}
	msg := kafka.Message{
		Key:   []byte(rec.Symbol),
		Value: data,
	}
	if err := t.writer.WriteMessages(ctx, msg); err != nil {
		t.log.WithComponent("kafka_tee").WithError(err).Warn("failed to publish record")
		return
	}
	logger.RecordChannelMessage("kafka_tee", len(data))
}

func (t *RecordTee) Close() {
	t.log.WithComponent("kafka_tee").Debug("closing kafka tee")
	t.writer.Close()
}
