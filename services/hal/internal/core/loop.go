package core

import (
	"context"
	"strings"

	"imucode-go/bus"
	"imucode-go/errcode"
	"imucode-go/types"
	"imucode-go/x/timex"
)

const (
	eventQueueLen = 16
	pollQueueLen  = 8
)

// Verbs handled by HAL itself rather than the owning device.
const (
	VerbPollStart = "poll_start"
	VerbPollStop  = "poll_stop"
	VerbRead      = "read"
)

type HAL struct {
	conn *bus.Connection
	res  Resources

	// Device registry
	dev map[string]Device // devID -> device

	// Capability index: (domain,kind,name) -> devID
	capIndex map[CapAddr]string

	cfgSub  *bus.Subscription
	ctrlSub *bus.Subscription

	// Single-threaded publication of device events
	evCh chan Event

	pollCh chan PollReq
	poller *Poller
}

func NewHAL(conn *bus.Connection, res Resources) *HAL {
	h := &HAL{
		conn:     conn,
		res:      res,
		dev:      map[string]Device{},
		capIndex: map[CapAddr]string{},
		evCh:     make(chan Event, eventQueueLen),
		pollCh:   make(chan PollReq, pollQueueLen),
	}
	h.poller = NewPoller(h.pollCh)
	// HAL provides the emitter to devices.
	h.res.Pub = h
	return h
}

func (h *HAL) Run(ctx context.Context) {
	h.cfgSub = h.conn.Subscribe(TopicConfigHAL())
	h.ctrlSub = h.conn.Subscribe(ctrlPattern)
	defer h.conn.Unsubscribe(h.cfgSub)
	defer h.conn.Unsubscribe(h.ctrlSub)

	pctx, stopPoller := context.WithCancel(ctx)
	defer stopPoller()
	go h.poller.Run(pctx)

	h.pubHALState("idle", "awaiting_config")
	ready := false
	for {
		select {
		case <-ctx.Done():
			h.closeDevices()
			h.pubHALState("stopped", "context_cancelled")
			return
		case msg := <-h.cfgSub.Channel():
			if msg == nil {
				continue
			}
			if v, ok := msg.Payload.(types.HALConfig); ok {
				// Additive and idempotent for devices already built.
				h.applyConfig(ctx, v)
				if !ready {
					ready = true
					h.pubHALState("ready", "")
				}
			}
		case m := <-h.ctrlSub.Channel():
			if m == nil {
				continue
			}
			if !ready {
				h.replyErr(m, errcode.HALNotReady)
				continue
			}
			h.handleControl(m) // strictly non-blocking
		case pr := <-h.pollCh:
			h.handlePoll(pr)
		case ev := <-h.evCh:
			// All device→HAL telemetry is published from this goroutine.
			h.handleEvent(ev)
		}
	}
}

func (h *HAL) applyConfig(ctx context.Context, cfg types.HALConfig) {
	for i := range cfg.Devices {
		dc := cfg.Devices[i]
		if _, exists := h.dev[dc.ID]; exists {
			continue
		}
		b, ok := lookupBuilder(dc.Type)
		if !ok {
			println("[hal] no builder for type:", dc.Type, "id:", dc.ID, "known:", strings.Join(BuilderTypes(), ","))
			continue
		}
		dev, err := b.Build(ctx, BuilderInput{
			ID:     dc.ID,
			Type:   dc.Type,
			Params: dc.Params,
			Res:    h.res,
		})
		if err != nil {
			println("[hal] build failed for:", dc.ID, "err:", err.Error())
			continue
		}
		if err := dev.Init(ctx); err != nil {
			println("[hal] init failed for:", dc.ID, "err:", err.Error())
			_ = dev.Close()
			continue
		}
		h.dev[dev.ID()] = dev

		// Register capabilities, publish retained info + initial status:down
		for _, cs := range dev.Capabilities() {
			addr := h.resolve(dev.ID(), cs)
			h.capIndex[addr] = dev.ID()

			h.conn.Publish(h.conn.NewMessage(
				addr.InfoTopic(),
				types.Info{SchemaVersion: cs.Info.SchemaVersion, Driver: cs.Info.Driver, Detail: cs.Info.Detail},
				true,
			))
			h.conn.Publish(h.conn.NewMessage(
				addr.StatusTopic(),
				types.CapabilityStatus{Link: types.LinkDown, TSms: timex.NowMs()},
				true,
			))
		}
	}

	for _, ps := range cfg.Pollers {
		addr := CapAddr{Domain: ps.Domain, Kind: string(ps.Kind), Name: ps.Name}
		if addr.Domain == "" {
			addr.Domain = DefaultDomainFor(addr.Kind)
		}
		if _, ok := h.capIndex[addr]; !ok {
			println("[hal] poller for unknown capability:", addr.Domain, addr.Kind, addr.Name)
			continue
		}
		verb := ps.Verb
		if verb == "" {
			verb = VerbRead
		}
		h.poller.Upsert(addr, verb,
			timex.FromMs(ps.IntervalMs), timex.FromMs(ps.JitterMs))
	}
}

// resolve fills in the inferred domain and name of a capability.
func (h *HAL) resolve(devID string, cs CapabilitySpec) CapAddr {
	k := string(cs.Kind)
	domain := cs.Domain
	if domain == "" {
		domain = DefaultDomainFor(k)
	}
	name := cs.Name
	if name == "" {
		name = devID
	}
	return CapAddr{Domain: domain, Kind: k, Name: name}
}

func (h *HAL) handleControl(msg *bus.Message) {
	addr, verb, ok := addrFromCtrl(msg.Topic)
	if !ok {
		h.replyErr(msg, errcode.InvalidTopic)
		return
	}

	ownerID, ok := h.capIndex[addr]
	if !ok {
		h.replyErr(msg, errcode.UnknownCapability)
		return
	}
	dev := h.dev[ownerID]
	if dev == nil {
		h.replyErr(msg, errcode.Error)
		return
	}

	switch verb {
	case VerbPollStart:
		ps, code := As[types.PollStart](msg.Payload)
		if code != "" {
			h.replyErr(msg, code)
			return
		}
		if ps.IntervalMs == 0 {
			h.replyErr(msg, errcode.InvalidParams)
			return
		}
		v := ps.Verb
		if v == "" {
			v = VerbRead
		}
		h.poller.Upsert(addr, v, timex.FromMs(ps.IntervalMs), timex.FromMs(ps.JitterMs))
		h.replyOK(msg)
		return
	case VerbPollStop:
		ps, code := As[types.PollStop](msg.Payload)
		if code != "" {
			h.replyErr(msg, code)
			return
		}
		v := ps.Verb
		if v == "" {
			v = VerbRead
		}
		h.poller.Stop(addr, v)
		h.replyOK(msg)
		return
	}

	res, err := dev.Control(addr, verb, msg.Payload)
	if err != nil {
		h.replyFromError(msg, err)
		return
	}
	if !msg.CanReply() {
		return
	}
	if res.OK {
		if res.Reply != nil {
			h.conn.Reply(msg, res.Reply, false)
			return
		}
		h.replyOK(msg)
		return
	}
	code := res.Error
	if code == "" {
		code = errcode.Busy
	}
	h.replyErr(msg, code)
}

// handlePoll forwards a fired schedule to the device as a fire-and-forget control.
func (h *HAL) handlePoll(pr PollReq) {
	ownerID, ok := h.capIndex[pr.Addr]
	if !ok {
		h.poller.Stop(pr.Addr, pr.Verb)
		return
	}
	dev := h.dev[ownerID]
	if dev == nil {
		return
	}
	// A busy device simply skips this tick.
	_, _ = dev.Control(pr.Addr, pr.Verb, nil)
}

func (h *HAL) handleEvent(ev Event) {
	if ev.TSms == 0 {
		ev.TSms = timex.NowMs()
	}

	// Error → retained status:degraded; no value published.
	if ev.Err != "" {
		h.conn.Publish(h.conn.NewMessage(
			ev.Addr.StatusTopic(),
			types.CapabilityStatus{Link: types.LinkDegraded, TSms: ev.TSms, Error: ev.Err},
			true,
		))
		return
	}

	if ev.Info {
		h.conn.Publish(h.conn.NewMessage(ev.Addr.InfoTopic(), ev.Payload, true))
		return
	}

	h.conn.Publish(h.conn.NewMessage(ev.Addr.ValueTopic(), ev.Payload, true))
	h.conn.Publish(h.conn.NewMessage(
		ev.Addr.StatusTopic(),
		types.CapabilityStatus{Link: types.LinkUp, TSms: ev.TSms},
		true,
	))
}

func (h *HAL) closeDevices() {
	for id, d := range h.dev {
		if err := d.Close(); err != nil {
			println("[hal] close failed for:", id, "err:", err.Error())
		}
	}
	h.dev = map[string]Device{}
	h.capIndex = map[CapAddr]string{}
}

func (h *HAL) pubHALState(level, status string) {
	h.conn.Publish(h.conn.NewMessage(
		TopicState(),
		types.HALState{Level: level, Status: status, TSms: timex.NowMs()},
		true,
	))
}

// DefaultDomainFor infers the bus domain of a capability kind.
func DefaultDomainFor(kind string) string {
	switch kind {
	case string(types.KindAccel), string(types.KindGyro):
		return "motion"
	case string(types.KindTemperature), "humidity":
		return "env"
	default:
		return "io"
	}
}

// ---- HAL as EventEmitter (enqueue to single publisher) ----

func (h *HAL) Emit(ev Event) bool {
	select {
	case h.evCh <- ev:
		return true
	default:
		return false
	}
}

func (h *HAL) pollCount() int { return h.poller.Len() }
