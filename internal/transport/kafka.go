package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/lineagelens/internal/config"
	"github.com/sanspareilsmyn/lineagelens/internal/stats"
)

type kafkaZapLogger struct {
	log *zap.Logger
}

func (l kafkaZapLogger) Printf(msg string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(msg, args...))
}

type kafkaZapErrorLogger struct {
	log *zap.Logger
}

func (l kafkaZapErrorLogger) Printf(msg string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(msg, args...))
}

// KafkaStatsWriter publishes flushed window snapshots to a Kafka topic,
// one message per window. It implements stats.StatsWriter. Delivery
// retries are the writer's concern; the caller treats each publish as
// fire-and-forget.
type KafkaStatsWriter struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaStatsWriter creates and configures the stats writer.
func NewKafkaStatsWriter(cfg config.KafkaConfig, logger *zap.Logger) (*KafkaStatsWriter, error) {
	if len(cfg.Brokers) == 0 || cfg.StatsTopic == "" {
		logger.Error("Kafka stats writer configuration validation failed",
			zap.Strings("brokers", cfg.Brokers),
			zap.String("stats_topic", cfg.StatsTopic),
		)
		return nil, ErrInvalidWriterConfig
	}

	w := &kafka.Writer{
		Addr:        kafka.TCP(cfg.Brokers...),
		Topic:       cfg.StatsTopic,
		Balancer:    &kafka.LeastBytes{},
		Logger:      kafkaZapLogger{logger.Named("kafka-writer").WithOptions(zap.AddCallerSkip(1))},
		ErrorLogger: kafkaZapErrorLogger{logger.Named("kafka-writer-error").WithOptions(zap.AddCallerSkip(1))},
	}

	logger.Info("Kafka stats writer created",
		zap.String("topic", cfg.StatsTopic),
		zap.Strings("brokers", cfg.Brokers),
	)

	return &KafkaStatsWriter{
		writer: w,
		logger: logger,
	}, nil
}

// WriteStats JSON-encodes one window snapshot and publishes it, keyed
// by the window start so all snapshots for a window land in one
// partition.
func (w *KafkaStatsWriter) WriteStats(ctx context.Context, snapshot *stats.WindowSnapshot) error {
	msg, err := buildMessage(snapshot)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrStatsPublishFailed, err)
	}
	return nil
}

// Close flushes and closes the underlying Kafka writer.
func (w *KafkaStatsWriter) Close() error {
	w.logger.Debug("Closing Kafka stats writer...")
	return w.writer.Close()
}

func buildMessage(snapshot *stats.WindowSnapshot) (kafka.Message, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("%w: %w", ErrSnapshotMarshalFailed, err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(snapshot.WindowStart, 10)),
		Value: payload,
	}, nil
}
