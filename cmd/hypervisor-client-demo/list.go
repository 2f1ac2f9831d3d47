package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type ListOptions struct {
	Term string
}

func DefaultListOptions() *ListOptions {
	return &ListOptions{}
}

func newListCommand() *cobra.Command {
	o := DefaultListOptions()
	cmd := &cobra.Command{
		Use:   "list [term]",
		Short: "List VMs known to the inventory cache, optionally filtered by id/name substring.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				o.Term = args[0]
			}
			return o.Run(cmd.Context())
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *ListOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.Term, "term", o.Term, "Substring to filter VM id/name by.")
}

func (o *ListOptions) Run(ctx context.Context) error {
	client, cleanup, err := newClient()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	defer cleanup()

	vms, err := client.Find(ctx, o.Term)
	if err != nil {
		return fmt.Errorf("listing vms: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, '\t', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tSTATUS")
	for _, v := range vms {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.ID, v.Name, v.State, v.Status)
	}
	return w.Flush()
}
