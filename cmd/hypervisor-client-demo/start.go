package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start ID",
		Short: "Power on a VM and re-push its guestinfo annotations.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), args[0])
		},
		SilenceUsage: true,
	}
}

func runStart(ctx context.Context, id string) error {
	client, cleanup, err := newClient()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	defer cleanup()

	v, err := client.Start(ctx, id)
	if err != nil {
		return fmt.Errorf("starting %s: %w", id, err)
	}
	fmt.Printf("%s is now %s\n", v.ID, v.State)
	return nil
}
