package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kubev2v/hypervisor-client/internal/hypervisor"
	"github.com/kubev2v/hypervisor-client/pkg/log"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand wires the hypervisor-client-demo CLI: one Client per
// invocation, built from the environment, against which each subcommand
// runs a single VM Operations Surface call.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "hypervisor-client-demo",
		Short:        "Exercise the hypervisor client core against a vCenter endpoint.",
		SilenceUsage: true,
	}

	root.AddCommand(
		newListCommand(),
		newStartCommand(),
		newStopCommand(),
		newDeployCommand(),
		newDeleteCommand(),
		newTicketCommand(),
	)

	return root
}

func newClient() (*hypervisor.Client, func(), error) {
	cfg, err := loadEnvConfig()
	if err != nil {
		return nil, nil, err
	}

	lg := log.NewSugaredLogger(log.InitLog(zap.NewAtomicLevelAt(zapcore.InfoLevel)))

	hcfg := &hypervisor.Config{
		Host:                    cfg.Host,
		URL:                     cfg.URL,
		User:                    cfg.User,
		Password:                cfg.Password,
		PoolPath:                cfg.PoolPath,
		Uplink:                  cfg.Uplink,
		IsNsxNetwork:            cfg.IsNsxNetwork,
		Sddc:                    cfg.Sddc,
		IsVCenter:               cfg.IsVCenter,
		VmStore:                 cfg.VmStore,
		Tenant:                  cfg.Tenant,
		ExcludeNetworkMask:      cfg.ExcludeNetworkMask,
		KeepAliveMinutes:        cfg.KeepAliveMinutes,
		IgnoreCertificateErrors: cfg.IgnoreCertificateErrors,
		DebugVerbose:            cfg.DebugVerbose,
	}

	client, err := hypervisor.NewClient(hcfg, lg)
	if err != nil {
		return nil, nil, err
	}

	return client, client.Close, nil
}
