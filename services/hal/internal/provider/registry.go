// Package provider owns the physical buses handed to HAL and serialises all
// traffic on each of them.
package provider

import (
	"sort"
	"sync"
	"time"

	"imucode-go/errcode"
	"imucode-go/services/hal/internal/core"

	"tinygo.org/x/drivers"
)

// DefaultTxTimeout bounds how long a transfer waits for a slot on a busy bus.
const DefaultTxTimeout = 250 * time.Millisecond

// Ensure the provider satisfies the contracts at compile time.
var _ core.ResourceRegistry = (*Registry)(nil)

type claimKey struct {
	bus  core.ResourceID
	addr uint16
}

// Registry hands out serialised I²C handles. Each (bus, address) pair may be
// claimed by one device at a time.
type Registry struct {
	mu        sync.Mutex
	i2cOwners map[core.ResourceID]*i2cOwner
	claims    map[claimKey]string // -> devID
	timeout   time.Duration
	closed    bool
}

// NewRegistry starts one worker per bus. The buses must already be configured.
func NewRegistry(buses map[string]drivers.I2C) *Registry {
	r := &Registry{
		i2cOwners: make(map[core.ResourceID]*i2cOwner, len(buses)),
		claims:    make(map[claimKey]string),
		timeout:   DefaultTxTimeout,
	}
	for id, hw := range buses {
		if hw == nil {
			continue
		}
		r.i2cOwners[core.ResourceID(id)] = newI2COwner(core.ResourceID(id), hw)
	}
	return r
}

// SetTxTimeout changes the enqueue bound for handles claimed afterwards.
func (r *Registry) SetTxTimeout(d time.Duration) {
	r.mu.Lock()
	r.timeout = d
	r.mu.Unlock()
}

// Buses lists the registered bus ids in sorted order.
func (r *Registry) Buses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.i2cOwners))
	for id := range r.i2cOwners {
		out = append(out, string(id))
	}
	sort.Strings(out)
	return out
}

func (r *Registry) ClaimI2C(devID string, id core.ResourceID, addr uint16) (drivers.I2C, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.i2cOwners[id]
	if o == nil || r.closed {
		return nil, errcode.UnknownBus
	}
	k := claimKey{bus: id, addr: addr}
	if owner, taken := r.claims[k]; taken && owner != devID {
		return nil, errcode.BusInUse
	}
	r.claims[k] = devID
	return &driversI2C{o: o, timeout: r.timeout}, nil
}

func (r *Registry) ReleaseI2C(devID string, id core.ResourceID, addr uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := claimKey{bus: id, addr: addr}
	if owner, ok := r.claims[k]; ok && owner == devID {
		delete(r.claims, k)
	}
}

// Close stops the per-bus workers. Handles fail with unknown_bus afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	owners := r.i2cOwners
	r.mu.Unlock()

	for _, o := range owners {
		o.stop()
	}
}
