package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newTicketCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ticket ID",
		Short: "Acquire a webmks console ticket URL for a VM.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTicket(cmd.Context(), args[0])
		},
		SilenceUsage: true,
	}
}

func runTicket(ctx context.Context, id string) error {
	client, cleanup, err := newClient()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	defer cleanup()

	url, err := client.GetTicket(ctx, id)
	if err != nil {
		return fmt.Errorf("acquiring ticket for %s: %w", id, err)
	}
	fmt.Println(url)
	return nil
}
