package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kubev2v/hypervisor-client/internal/hypervisor"
)

// DeployOptions binds the flat flag surface cobra needs onto the nested
// VmTemplate the hypervisor package expects.
type DeployOptions struct {
	Name      string
	GuestID   string
	CPU       int32
	MemoryMB  int32
	Disks     []string // sizeGB:controller, e.g. 20:lsiLogic
	Nics      []string // network name
	ISO       string
	GuestInfo []string // key=value
	AutoStart bool
}

func DefaultDeployOptions() *DeployOptions {
	return &DeployOptions{
		GuestID:  "otherGuest64",
		CPU:      2,
		MemoryMB: 4096,
	}
}

func newDeployCommand() *cobra.Command {
	o := DefaultDeployOptions()
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Provision networking and create a VM from a template.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(); err != nil {
				return err
			}
			return o.Run(cmd.Context())
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *DeployOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.Name, "name", o.Name, "VM name.")
	fs.StringVar(&o.GuestID, "guest-id", o.GuestID, "Guest OS identifier.")
	fs.Int32Var(&o.CPU, "cpu", o.CPU, "Number of virtual CPUs.")
	fs.Int32Var(&o.MemoryMB, "memory-mb", o.MemoryMB, "Memory in MB.")
	fs.StringArrayVar(&o.Disks, "disk", o.Disks, "Disk as sizeGB:controller, repeatable.")
	fs.StringArrayVar(&o.Nics, "nic", o.Nics, "Network name for one NIC, repeatable.")
	fs.StringVar(&o.ISO, "iso", o.ISO, "Datastore path of an ISO to attach.")
	fs.StringArrayVar(&o.GuestInfo, "guestinfo", o.GuestInfo, "guestinfo entry as key=value, repeatable.")
	fs.BoolVar(&o.AutoStart, "auto-start", o.AutoStart, "Power the VM on once created.")
}

func (o *DeployOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("--name is required")
	}
	if len(o.Nics) == 0 {
		return fmt.Errorf("at least one --nic is required")
	}
	return nil
}

func (o *DeployOptions) Run(ctx context.Context) error {
	client, cleanup, err := newClient()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	defer cleanup()

	tmpl, err := o.toTemplate()
	if err != nil {
		return err
	}

	v, err := client.Deploy(ctx, tmpl)
	if err != nil {
		return fmt.Errorf("deploying %s: %w", o.Name, err)
	}
	fmt.Printf("%s created (%s)\n", v.ID, v.State)
	return nil
}

func (o *DeployOptions) toTemplate() (hypervisor.VmTemplate, error) {
	tmpl := hypervisor.VmTemplate{
		Name:      o.Name,
		GuestID:   o.GuestID,
		CPU:       o.CPU,
		MemoryMB:  o.MemoryMB,
		ISO:       o.ISO,
		AutoStart: o.AutoStart,
		GuestInfo: map[string]string{},
	}

	for _, d := range o.Disks {
		parts := strings.SplitN(d, ":", 2)
		sizeGB, err := strconv.Atoi(parts[0])
		if err != nil {
			return tmpl, fmt.Errorf("invalid --disk %q: %w", d, err)
		}
		controller := "lsiLogic"
		if len(parts) == 2 {
			controller = parts[1]
		}
		tmpl.Disks = append(tmpl.Disks, hypervisor.VmDisk{SizeGB: int32(sizeGB), Controller: controller})
	}

	for _, n := range o.Nics {
		tmpl.Nics = append(tmpl.Nics, hypervisor.VmNic{Network: n})
	}

	for _, g := range o.GuestInfo {
		kv := strings.SplitN(g, "=", 2)
		if len(kv) != 2 {
			return tmpl, fmt.Errorf("invalid --guestinfo %q, want key=value", g)
		}
		tmpl.GuestInfo[kv[0]] = kv[1]
	}

	return tmpl, nil
}
