package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"clipstudio/events"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect clip and job completion events",
	}
	eventsCmd.AddCommand(newEventsTailCommand(ctx))
	return eventsCmd
}

func newEventsTailCommand(ctx *commandContext) *cobra.Command {
	var groupID string

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print completion events from Kafka as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config.Events
			if len(cfg.KafkaBrokers) == 0 {
				return errors.New("no kafka brokers configured (set events.kafka_brokers or KAFKA_BROKERS)")
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			consumer, err := events.NewConsumer(events.ConsumerConfig{
				Brokers: cfg.KafkaBrokers,
				Topic:   cfg.KafkaTopic,
				GroupID: groupID,
				Handler: func(_ context.Context, e events.Event) error {
					return enc.Encode(e)
				},
			})
			if err != nil {
				return err
			}
			defer consumer.Close()

			if err := consumer.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consumer stopped: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&groupID, "group", "g", "clipstudio-tail", "Consumer group ID")
	return cmd
}
