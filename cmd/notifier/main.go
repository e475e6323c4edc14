package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/turf-slot-booking/internal/config"
	"github.com/iliyamo/turf-slot-booking/internal/queue"
)

// notifier consumes booking.created events and appends them to the owner
// notification log.
func main() {
	cfg, err := config.LoadNotifier()
	if err != nil {
		log.Fatal(err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("notifier: consuming %s from %s into %s", cfg.NotifyQueue, cfg.NotifyExchange, cfg.NotifyLogPath)
	err = queue.StartBookingConsumer(ctx, queue.ConsumerConfig{
		URL:      cfg.RabbitURL,
		Exchange: cfg.NotifyExchange,
		Queue:    cfg.NotifyQueue,
		LogPath:  cfg.NotifyLogPath,
	})
	if err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}
