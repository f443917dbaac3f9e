package store

import (
	"log/slog"
	"sync"

	"github.com/sebas/pbxqueue/internal/pbx"
)

// DeviceBus is a bounded, single-consumer-worker pbx.DeviceStateBus.
// Publication never blocks on a consumer holding a lock a publisher needs
// (Design Notes, "Background work"): Publish enqueues onto an internal
// channel and returns; one worker goroutine drains it and fans out to
// subscribers, the same bounded-fan-out discipline the teacher's
// drain.Coordinator uses for node-drain migrations.
type DeviceBus struct {
	mu      sync.RWMutex
	current map[string]pbx.DeviceState

	in   chan pbx.DeviceStateEvent
	subs []chan pbx.DeviceStateEvent
	subMu sync.Mutex
}

// NewDeviceBus creates a bus and starts its worker goroutine. backlog
// bounds how many pending state changes may queue; once it is full,
// Publish drops further changes with a warning instead of blocking.
func NewDeviceBus(backlog int) *DeviceBus {
	if backlog <= 0 {
		backlog = 256
	}
	b := &DeviceBus{
		current: make(map[string]pbx.DeviceState),
		in:      make(chan pbx.DeviceStateEvent, backlog),
	}
	go b.run()
	return b
}

func (b *DeviceBus) run() {
	for evt := range b.in {
		b.mu.Lock()
		b.current[evt.Interface] = evt.State
		b.mu.Unlock()

		b.subMu.Lock()
		subs := make([]chan pbx.DeviceStateEvent, len(b.subs))
		copy(subs, b.subs)
		b.subMu.Unlock()

		for _, s := range subs {
			select {
			case s <- evt:
			default:
				slog.Warn("device state subscriber lagging, dropping event",
					"interface", evt.Interface, "state", evt.State.String())
			}
		}
	}
}

// Publish enqueues a device-state change for asynchronous fan-out.
func (b *DeviceBus) Publish(evt pbx.DeviceStateEvent) {
	select {
	case b.in <- evt:
	default:
		slog.Warn("device state bus backlog full, dropping event", "interface", evt.Interface)
	}
}

// Subscribe returns a channel receiving every future state change.
func (b *DeviceBus) Subscribe() <-chan pbx.DeviceStateEvent {
	ch := make(chan pbx.DeviceStateEvent, 32)
	b.subMu.Lock()
	b.subs = append(b.subs, ch)
	b.subMu.Unlock()
	return ch
}

// Current returns the last-known state of iface, or DeviceUnknown.
func (b *DeviceBus) Current(iface string) pbx.DeviceState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if s, ok := b.current[iface]; ok {
		return s
	}
	return pbx.DeviceUnknown
}

var _ pbx.DeviceStateBus = (*DeviceBus)(nil)
