package main

import "github.com/kelseyhightower/envconfig"

// envConfig binds the endpoint configuration from the environment.
// internal/hypervisor itself takes no env/CLI dependency; this demo
// command is the one place envconfig belongs.
type envConfig struct {
	Host                    string `envconfig:"HYPERVISOR_HOST" required:"true"`
	URL                     string `envconfig:"HYPERVISOR_URL"`
	User                    string `envconfig:"HYPERVISOR_USER" required:"true"`
	Password                string `envconfig:"HYPERVISOR_PASSWORD" required:"true"`
	PoolPath                string `envconfig:"HYPERVISOR_POOL_PATH" required:"true"`
	Uplink                  string `envconfig:"HYPERVISOR_UPLINK"`
	IsNsxNetwork            bool   `envconfig:"HYPERVISOR_NSX_NETWORK" default:"false"`
	Sddc                    string `envconfig:"HYPERVISOR_SDDC"`
	IsVCenter               bool   `envconfig:"HYPERVISOR_IS_VCENTER" default:"true"`
	VmStore                 string `envconfig:"HYPERVISOR_VM_STORE"`
	Tenant                  string `envconfig:"HYPERVISOR_TENANT" required:"true"`
	ExcludeNetworkMask      string `envconfig:"HYPERVISOR_EXCLUDE_NETWORK_MASK"`
	KeepAliveMinutes        int    `envconfig:"HYPERVISOR_KEEPALIVE_MINUTES" default:"30"`
	IgnoreCertificateErrors bool   `envconfig:"HYPERVISOR_IGNORE_CERT_ERRORS" default:"false"`
	DebugVerbose            bool   `envconfig:"HYPERVISOR_DEBUG_VERBOSE" default:"false"`
}

func loadEnvConfig() (*envConfig, error) {
	var c envConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}
