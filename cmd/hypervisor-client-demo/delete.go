package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Stop, unregister, and remove a VM's datastore folder.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd.Context(), args[0])
		},
		SilenceUsage: true,
	}
}

func runDelete(ctx context.Context, id string) error {
	client, cleanup, err := newClient()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	defer cleanup()

	if err := client.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	fmt.Printf("%s deleted\n", id)
	return nil
}
