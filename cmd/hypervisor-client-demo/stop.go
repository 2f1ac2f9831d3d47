package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop ID",
		Short: "Power off a VM.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd.Context(), args[0])
		},
		SilenceUsage: true,
	}
}

func runStop(ctx context.Context, id string) error {
	client, cleanup, err := newClient()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	defer cleanup()

	v, err := client.Stop(ctx, id)
	if err != nil {
		return fmt.Errorf("stopping %s: %w", id, err)
	}
	fmt.Printf("%s is now %s\n", v.ID, v.State)
	return nil
}
