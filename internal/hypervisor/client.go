package hypervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lthibault/jitterbug"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/property"

	"github.com/kubev2v/hypervisor-client/internal/hypervisor/network"
	"github.com/kubev2v/hypervisor-client/pkg/log"
)

// session is either null, Open, or Faulted.
type sessionState int

const (
	sessionNull sessionState = iota
	sessionOpen
	sessionFaulted
)

// Client is the Session Monitor plus the glue that owns every
// other component for one endpoint. One Client exists per configured
// hypervisor endpoint; nothing here is process-global.
type Client struct {
	cfg *Config
	log log.Logger

	mu         sync.Mutex
	state      sessionState
	adapter    *adapter
	resolver   *resolver
	datastores *datastoreBrowser
	netMgr     network.Manager
	tasks      *taskTracker
	store      InventoryStore

	lastAction time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// NewClient constructs a Client with its own InventoryStore; multiple
// Clients in a process never share cache entries.
func NewClient(cfg *Config, lg log.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:   cfg,
		log:   lg,
		store: newMemInventory(),
		stop:  make(chan struct{}),
	}
	c.startLoops()
	return c, nil
}

// Connect is idempotent and gated by the config's mutex: only one caller
// wins the connection attempt.
func (c *Client) Connect(ctx context.Context) error {
	c.cfg.connectMu.Lock()
	defer c.cfg.connectMu.Unlock()

	c.touch()

	c.mu.Lock()
	if c.state == sessionOpen {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	a, err := dial(ctx, c.cfg, c.log)
	if err != nil {
		return err
	}

	r, err := newResolver(ctx, a, c.cfg)
	if err != nil {
		a.logout(ctx)
		return err
	}

	netMgr, err := c.buildNetworkManager(ctx, a, r)
	if err != nil {
		a.logout(ctx)
		return err
	}
	if err := netMgr.Initialize(ctx); err != nil {
		a.logout(ctx)
		return err
	}

	pc := property.DefaultCollector(a.vim)
	tasks := newTaskTracker(pc, c.log)

	c.mu.Lock()
	c.adapter = a
	c.resolver = r
	c.datastores = newDatastoreBrowser(r.finder)
	c.netMgr = netMgr
	c.tasks = tasks
	c.state = sessionOpen
	c.mu.Unlock()

	if err := reloadVmCache(ctx, a, r, c.store, c.cfg.Tenant, c.cfg.Host, c.log); err != nil {
		c.log.Warnw("initial vm cache reload failed", "error", err)
	}

	return nil
}

func (c *Client) buildNetworkManager(ctx context.Context, a *adapter, r *resolver) (network.Manager, error) {
	isVCenter := c.cfg.IsVCenter || a.serviceContentDescribesVCenter()

	switch network.SelectKind(isVCenter, c.cfg.UsesOverlay()) {
	case network.KindHost:
		if r.host == nil {
			return nil, fmt.Errorf("host network manager: no standalone host found")
		}
		return network.NewHostManager(r.finder, r.host, c.cfg.ExcludeNetworkMask), nil
	case network.KindOverlay:
		return network.NewOverlayManager(r.finder, c.cfg.Sddc), nil
	default:
		dvs, err := findUplinkSwitch(ctx, r.finder, c.cfg.Uplink)
		if err != nil {
			return nil, err
		}
		return network.NewDistributedManager(r.finder, dvs, c.cfg.ExcludeNetworkMask, network.NoopVlanProvider{}), nil
	}
}

func findUplinkSwitch(ctx context.Context, finder interface {
	NetworkList(ctx context.Context, path string) ([]object.NetworkReference, error)
}, uplink string) (*object.DistributedVirtualSwitch, error) {
	nets, err := finder.NetworkList(ctx, "*")
	if err != nil {
		return nil, fmt.Errorf("distributed network manager: list networks: %w", err)
	}
	var first *object.DistributedVirtualSwitch
	for _, n := range nets {
		dvs, ok := n.(*object.DistributedVirtualSwitch)
		if !ok {
			continue
		}
		if first == nil {
			first = dvs
		}
		if uplink != "" && dvs.Name() == uplink {
			return dvs, nil
		}
	}
	if first != nil {
		return first, nil
	}
	return nil, fmt.Errorf("distributed network manager: no distributed virtual switch found")
}

// Disconnect nulls out the session and its handles first, then logs out,
// giving the logout at most 500 ms.
func (c *Client) Disconnect(ctx context.Context) {
	c.mu.Lock()
	a := c.adapter
	c.state = sessionNull
	c.adapter = nil
	c.resolver = nil
	c.datastores = nil
	c.netMgr = nil
	c.tasks = nil
	c.mu.Unlock()

	if a != nil {
		a.logout(ctx)
	}
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastAction = time.Now()
	c.mu.Unlock()
}

func (c *Client) markFaulted() {
	c.mu.Lock()
	c.state = sessionFaulted
	c.mu.Unlock()
}

// Close stops both background loops. Safe to call multiple times.
func (c *Client) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// startLoops launches the two independent background workers: the
// session loop (30 s tick) and the task loop (3 s tick). Both
// use jitterbug tickers rather than a bare time.Ticker to avoid
// thundering-herd polling across many Client instances in one process.
func (c *Client) startLoops() {
	sessionTicker := jitterbug.New(30*time.Second, &jitterbug.Norm{Stdev: 500 * time.Millisecond, Mean: 0})
	taskTicker := jitterbug.New(3*time.Second, &jitterbug.Norm{Stdev: 100 * time.Millisecond, Mean: 0})

	go func() {
		tick := 0
		for {
			select {
			case <-c.stop:
				sessionTicker.Stop()
				return
			case <-sessionTicker.C:
			}
			tick++
			c.sessionTick(context.Background(), tick%2 == 1)
		}
	}()

	go func() {
		for {
			select {
			case <-c.stop:
				taskTicker.Stop()
				return
			case <-taskTicker.C:
			}
			c.taskTick(context.Background())
		}
	}()
}

func (c *Client) sessionTick(ctx context.Context, cleanNetworks bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("session loop panicked", "recover", r)
		}
	}()

	c.mu.Lock()
	last := c.lastAction
	state := c.state
	keepAlive := c.cfg.keepAlive()
	c.mu.Unlock()

	if !last.IsZero() && time.Since(last) > keepAlive {
		c.Disconnect(ctx)
		return
	}

	if state != sessionOpen {
		if err := c.Connect(ctx); err != nil {
			c.log.Warnw("session reconnect failed", "error", err)
		}
		return
	}

	c.mu.Lock()
	a, r, store, netMgr := c.adapter, c.resolver, c.store, c.netMgr
	c.mu.Unlock()

	if err := reloadVmCache(ctx, a, r, store, c.cfg.Tenant, c.cfg.Host, c.log); err != nil {
		if isServerTooBusy(err) {
			c.markFaulted()
			c.Disconnect(ctx)
			return
		}
		c.log.Warnw("reload vm cache failed", "error", err)
	}

	if cleanNetworks && netMgr != nil {
		if err := netMgr.Clean(ctx); err != nil {
			c.log.Warnw("network clean failed", "error", err)
		}
	}
}

func (c *Client) taskTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("task loop panicked", "recover", r)
		}
	}()

	c.mu.Lock()
	tasks, store := c.tasks, c.store
	c.mu.Unlock()
	if tasks == nil {
		return
	}

	tasks.pollOnce(ctx, func(vmID string, progress int32, errMsg string) {
		v, ok := store.Get(vmID)
		if !ok {
			return
		}
		if v.Task == nil {
			v.Task = &VmTask{WhenCreated: time.Now()}
		}
		v.Task.Progress = progress
		if errMsg != "" {
			c.log.Warnw("vm task failed", "vm", vmID, "message", errMsg)
		}
		store.Upsert(v)
	})
}
