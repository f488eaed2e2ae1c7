package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"saveup/internal/events"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect published state changes",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print state-change events from the broker as JSON lines",
	RunE:  runEventsTail,
}

func init() {
	eventsCmd.AddCommand(eventsTailCmd)
	rootCmd.AddCommand(eventsCmd)
}

func runEventsTail(_ *cobra.Command, _ []string) error {
	if !cfg.EventsEnabled() {
		return errors.New("AMQP_URL is not configured")
	}
	client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = client.Consume(ctx, func(msg *events.StateChangedMessage) error {
		data, err := msg.ToJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
