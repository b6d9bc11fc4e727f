// Command eventwatch tails the JetStream event stream and prints every
// event the API forwards. Handy when checking ingests on a deployed box.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pdf-chat-be/internal/config"
	"pdf-chat-be/pkg/events"
	pktNats "pdf-chat-be/pkg/nats"
)

func main() {
	eventType := flag.String("type", ">", "event type to follow, e.g. DOCUMENT_INGESTED")
	durable := flag.String("durable", "eventwatch", "durable consumer name")
	flag.Parse()

	cfg := config.Load()
	if cfg.Events.NatsURL == "" {
		log.Fatal("Error: NATS_URL is not set")
	}

	sub, err := pktNats.NewSubscriber(cfg.Events.NatsURL)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer sub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = sub.Subscribe(ctx, pktNats.Subject(*eventType), *durable, func(ctx context.Context, e events.Event) error {
		data, _ := json.Marshal(e.Payload())
		log.Printf("%s %s %s", e.Timestamp().Format("15:04:05"), e.EventType(), data)
		return nil
	})
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	<-ctx.Done()
}
