package main

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	kafkaBroker = "localhost:9092"
	topic       = "provenance-events"
)

// Wire form of one provenance event (matches what LineageLens expects).
type provenanceEvent struct {
	EventID       int64    `json:"eventId"`
	EventType     string   `json:"eventType"`
	EventTime     int64    `json:"eventTime"`
	FeedName      string   `json:"feedName,omitempty"`
	ComponentID   string   `json:"componentId"`
	ComponentName string   `json:"componentName"`
	FlowFileID    string   `json:"flowFileUuid"`
	ParentIDs     []string `json:"parentUuids,omitempty"`
	BytesIn       int64    `json:"bytesIn"`
	BytesOut      int64    `json:"bytesOut"`
	DurationMS    int64    `json:"eventDuration"`
	Failure       bool     `json:"isFailure"`
	EndingEvent   bool     `json:"isEndingFlowFileEvent"`
}

var feeds = []string{"orders.ingest", "clickstream.raw", "inventory.sync"}

type processor struct {
	id   string
	name string
}

var processors = []processor{
	{"proc-receive", "ReceiveFiles"},
	{"proc-transform", "TransformRecords"},
	{"proc-publish", "PublishResults"},
}

func main() {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(kafkaBroker),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	defer func() {
		if err := writer.Close(); err != nil {
			log.Fatalf("Error closing kafka writer: %v", err)
		}
	}()
	log.Printf("Starting sample provenance producer for topic: %s on broker: %s", topic, kafkaBroker)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signals
		log.Println("Shutdown signal received, stopping producer...")
		cancel()
	}()

	// Produce one small lineage tree per tick
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var eventID int64

	for {
		select {
		case <-ticker.C:
			events := generateLineageTree(rng, &eventID)
			if err := publish(ctx, writer, events); err != nil {
				if ctx.Err() != nil {
					log.Println("Context cancelled, exiting message loop.")
					return
				}
				log.Printf("Error writing events: %v", err)
			} else {
				log.Printf("Produced lineage tree with %d events", len(events))
			}

		case <-ctx.Done():
			log.Println("Producer loop stopped.")
			return
		}
	}
}

func publish(ctx context.Context, writer *kafka.Writer, events []provenanceEvent) error {
	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		value, err := json.Marshal(event)
		if err != nil {
			log.Printf("Error marshalling event: %v", err)
			continue
		}
		messages = append(messages, kafka.Message{Key: []byte(event.FlowFileID), Value: value})
	}
	return writer.WriteMessages(ctx, messages...)
}

// generateLineageTree builds one synthetic job: a root flow file that
// fans out into two children, each of which completes, then the root
// completes. The last child ending event is the one that lets the
// aggregator detect the finished tree.
func generateLineageTree(rng *rand.Rand, eventID *int64) []provenanceEvent {
	feed := feeds[rng.Intn(len(feeds))]
	rootID := uuid.NewString()
	now := time.Now()

	next := func(eventType string, proc processor, flowFileID string, parents []string, ending bool) provenanceEvent {
		*eventID++
		return provenanceEvent{
			EventID:       *eventID,
			EventType:     eventType,
			EventTime:     now.UnixMilli(),
			FeedName:      feed,
			ComponentID:   proc.id,
			ComponentName: proc.name,
			FlowFileID:    flowFileID,
			ParentIDs:     parents,
			BytesIn:       int64(rng.Intn(4096)),
			BytesOut:      int64(rng.Intn(4096)),
			DurationMS:    int64(10 + rng.Intn(200)),
			Failure:       rng.Float64() < 0.05, // occasional failure
			EndingEvent:   ending,
		}
	}

	events := []provenanceEvent{
		next("RECEIVE", processors[0], rootID, nil, false),
	}

	childIDs := []string{uuid.NewString(), uuid.NewString()}
	for _, childID := range childIDs {
		events = append(events, next("CLONE", processors[1], childID, []string{rootID}, false))
	}

	// Root finishes first, then the children; the children's ending
	// events walk back to the now-complete root.
	events = append(events, next("DROP", processors[2], rootID, nil, true))
	for _, childID := range childIDs {
		events = append(events, next("DROP", processors[2], childID, []string{rootID}, true))
	}
	return events
}
