// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/lineagelens/internal/config"
	"github.com/sanspareilsmyn/lineagelens/internal/lineage"
	"github.com/sanspareilsmyn/lineagelens/internal/model"
	"github.com/sanspareilsmyn/lineagelens/internal/stats"
	"github.com/sanspareilsmyn/lineagelens/internal/transport"
)

// eventSource is the upstream component feeding raw events into the
// pipeline. Satisfied by *Consumer.
type eventSource interface {
	Run(ctx context.Context) error
}

// Pipeline orchestrates the stages: Kafka consumer, event parsing,
// lineage tracking, windowed stats aggregation, stats dispatch.
type Pipeline struct {
	cfg        *config.Config
	consumer   eventSource
	cache      *lineage.Cache
	calculator *stats.Calculator
	writer     *transport.KafkaStatsWriter
	logger     *zap.Logger

	rawEvents chan []byte
}

// New creates and wires up a new aggregation pipeline.
func New(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	initLogger := logger.Named("pipeline.init")
	initLogger.Debug("Creating pipeline components...")

	const channelBufferSize = 100
	rawEvents := make(chan []byte, channelBufferSize)

	consumerInstance, err := NewConsumer(cfg.Kafka, rawEvents, logger.Named("consumer"))
	if err != nil {
		initLogger.Error("Failed to create consumer", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrConsumerCreationFailed, err)
	}
	initLogger.Debug("Consumer created")

	writerInstance, err := transport.NewKafkaStatsWriter(cfg.Kafka, logger.Named("stats-writer"))
	if err != nil {
		initLogger.Error("Failed to create stats writer", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrWriterCreationFailed, err)
	}
	initLogger.Debug("Stats writer created")

	cacheInstance := lineage.NewCache(logger.Named("lineage"))
	calculatorInstance := stats.NewCalculator(cfg.Aggregation, writerInstance, logger.Named("calculator"))
	initLogger.Debug("Lineage cache and calculator created")

	p := &Pipeline{
		cfg:        cfg,
		consumer:   consumerInstance,
		cache:      cacheInstance,
		calculator: calculatorInstance,
		writer:     writerInstance,
		logger:     logger.Named("pipeline"),
		rawEvents:  rawEvents,
	}

	initLogger.Info("Pipeline instance created successfully")
	return p, nil
}

// Run starts all pipeline components and waits for them to complete or
// context cancellation.
func (p *Pipeline) Run(ctx context.Context) error {
	sugar := p.logger.Sugar()
	var wg sync.WaitGroup
	pipelineErr := make(chan error, 3) // consumer, processor, calculator ticker

	// Components run under a derived context so a fatal error in one of
	// them tears the others down; the calculator ticker in particular
	// exits only on cancellation, not on channel close.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sugar.Info("Pipeline Run: Starting components...")

	wg.Add(3)
	go p.runConsumer(runCtx, &wg, pipelineErr)
	go p.runProcessor(runCtx, &wg)
	go p.runCalculator(runCtx, &wg, pipelineErr)

	// Wait for context cancellation or the first error from any component
	var firstErr error
	select {
	case <-ctx.Done():
		sugar.Info("Pipeline Run: Context cancelled. Waiting for components to finish...")
		firstErr = ctx.Err()
	case err := <-pipelineErr:
		sugar.Errorw("Pipeline Run: Received error from a component, initiating shutdown...", zap.Error(err))
		firstErr = err
	}

	cancel()
	sugar.Debug("Pipeline Run: Waiting on WaitGroup...")
	wg.Wait()

	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			sugar.Warnw("Failed to close stats writer cleanly", zap.Error(err))
		}
	}
	sugar.Info("Pipeline Run: All components finished.")

	if firstErr != nil && !errors.Is(firstErr, context.Canceled) {
		return firstErr
	}
	return nil
}

// runConsumer executes the consumer component logic in a goroutine.
func (p *Pipeline) runConsumer(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()
	defer func() {
		close(p.rawEvents)
		p.logger.Debug("Raw events channel closed")
	}()

	p.logger.Debug("Starting consumer goroutine...")
	if err := p.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Consumer component exited with error", zap.Error(err))
		errCh <- fmt.Errorf("%w: %w", ErrConsumerRunFailed, err)
	} else if err == nil {
		p.logger.Debug("Consumer goroutine finished normally")
	} else {
		p.logger.Debug("Consumer goroutine cancelled gracefully")
	}
}

// runProcessor parses raw events, folds them into the lineage graph,
// and hands them to the calculator. A message that fails to parse is
// logged and skipped; it must not stall the stream.
func (p *Pipeline) runProcessor(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	processorLogger := p.logger.Named("processor").Sugar()
	processorLogger.Debug("Starting processor goroutine...")

	for {
		select {
		case raw, ok := <-p.rawEvents:
			if !ok {
				processorLogger.Debug("Processor finished (raw events channel closed).")
				return
			}

			event, err := model.ParseEvent(raw)
			if err != nil {
				processorLogger.Warnw("Failed to parse provenance event, skipping", zap.Error(err))
				continue
			}

			p.cache.Observe(event)
			p.calculator.CalculateStats(event)

		case <-ctx.Done():
			processorLogger.Debug("Processor context cancelled while waiting for raw event.", zap.Error(ctx.Err()))
			return
		}
	}
}

// runCalculator executes the calculator's background rollover ticker.
func (p *Pipeline) runCalculator(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()

	p.logger.Debug("Starting calculator ticker goroutine...")
	if err := p.calculator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Calculator component exited with error", zap.Error(err))
		errCh <- fmt.Errorf("%w: %w", ErrCalculatorRunFailed, err)
	} else if err == nil {
		p.logger.Debug("Calculator goroutine finished normally")
	} else {
		p.logger.Debug("Calculator goroutine cancelled gracefully")
	}
}
