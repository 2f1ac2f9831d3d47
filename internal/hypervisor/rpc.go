package hypervisor

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/vmware/govmomi/fault"
	"github.com/vmware/govmomi/session"
	"github.com/vmware/govmomi/session/keepalive"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/methods"
	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/kubev2v/hypervisor-client/pkg/log"
)

// keepAliveIdle is the idle time before the SOAP keepalive handler probes
// the session, grounded on vmware-tanzu-vm-operator's client package.
const keepAliveIdle = 5 * time.Minute

// adapter is the Hypervisor RPC Adapter: a thin wrapper over a
// single vim25 session. It never retries transport faults itself; callers
// (the VM Operations Surface, the Session Monitor) decide what to do with a
// TransportFaultError.
type adapter struct {
	vim *vim25.Client
	sm  *session.Manager
	log log.Logger

	host string
	port string
}

func dial(ctx context.Context, cfg *Config, lg log.Logger) (*adapter, error) {
	host, port := splitHostPort(cfg.Host, cfg.URL)

	soapURL, err := soap.ParseURL(net.JoinHostPort(host, port))
	if err != nil {
		return nil, &TransportFaultError{Op: "parse endpoint url", Err: err}
	}

	soapClient := soap.NewClient(soapURL, cfg.IgnoreCertificateErrors)

	vimClient, err := vim25.NewClient(ctx, soapClient)
	if err != nil {
		return nil, &TransportFaultError{Op: "create vim25 client", Err: err}
	}
	if err := vimClient.UseServiceVersion(); err != nil {
		return nil, &TransportFaultError{Op: "negotiate service version", Err: err}
	}

	userInfo := url.UserPassword(cfg.User, cfg.Password)
	sm := session.NewManager(vimClient)

	// Keepalive handler re-authenticates on NotAuthenticated faults so an
	// idle session reconnects transparently on the next call.
	vimClient.RoundTripper = keepalive.NewHandlerSOAP(soapClient, keepAliveIdle, func() error {
		probeCtx := context.Background()
		if _, err := methods.GetCurrentTime(probeCtx, soapClient); err != nil && isNotAuthenticated(err) {
			lg.Infow("re-authenticating vim client after idle timeout")
			return sm.Login(probeCtx, userInfo)
		}
		return nil
	})

	if err := sm.Login(ctx, userInfo); err != nil {
		return nil, &TransportFaultError{Op: "login", Err: err}
	}

	return &adapter{vim: vimClient, sm: sm, log: lg, host: host, port: port}, nil
}

func splitHostPort(host, rawURL string) (string, string) {
	if rawURL != "" {
		if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
			if h, p, err := net.SplitHostPort(u.Host); err == nil {
				return h, p
			}
			return u.Host, "443"
		}
	}
	if h, p, err := net.SplitHostPort(host); err == nil {
		return h, p
	}
	return host, "443"
}

func isNotAuthenticated(err error) bool {
	return fault.Is(err, &types.NotAuthenticated{})
}

// isServerTooBusy recognizes the fault class that triggers session
// teardown from the Session Monitor.
func isServerTooBusy(err error) bool {
	return fault.Is(err, &types.RequestCanceled{}) || fault.Is(err, &types.HostCommunication{})
}

func (a *adapter) logout(ctx context.Context) {
	logoutCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := a.sm.Logout(logoutCtx); err != nil {
		a.log.Warnw("logout failed", "error", err)
	}
}

func (a *adapter) serviceContentDescribesVCenter() bool {
	return a.vim.ServiceContent.About.ApiType == "VirtualCenter"
}

func (a *adapter) wrapFault(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportFaultError{Op: op, Err: err}
}
