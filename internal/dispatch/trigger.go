package dispatch

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/admiral-vulcan/musictolight-core/internal/cue"
	"github.com/admiral-vulcan/musictolight-core/internal/device"
)

// Trigger command strings understood by the effect-relay firmware.
const (
	triggerOn  = "smoke_on"
	triggerOff = "smoke_off"
)

// TriggerAdapter drives binary effect relays (fog machines, confetti
// cannons) with plain-text UDP commands.
type TriggerAdapter struct {
	mu    sync.Mutex
	conns map[string]net.Conn
}

// NewTriggerAdapter creates an adapter with no open connections.
func NewTriggerAdapter() *TriggerAdapter {
	return &TriggerAdapter{conns: make(map[string]net.Conn)}
}

// Protocol returns the protocol class this adapter serves.
func (a *TriggerAdapter) Protocol() device.ProtocolClass {
	return device.ProtocolRFTrigger
}

// Send transmits the on/off command for the payload. Blackout and
// recovery both force the relay off; an effect left running through a
// blackout would defeat the point of the blackout.
func (a *TriggerAdapter) Send(ctx context.Context, desc *device.Descriptor, p cue.Payload) error {
	var command string
	switch p.Kind {
	case cue.KindTrigger:
		command = triggerOff
		if p.On {
			command = triggerOn
		}
	case cue.KindBlackout, cue.KindRecover:
		command = triggerOff
	default:
		return fmt.Errorf("dispatch: no trigger encoding for kind %q", p.Kind)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	conn, err := a.conn(desc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if _, err := conn.Write([]byte(command)); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// Close releases all relay connections.
func (a *TriggerAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var first error
	for addr, conn := range a.conns {
		if err := conn.Close(); err != nil && first == nil {
			first = err
		}
		delete(a.conns, addr)
	}
	return first
}

func (a *TriggerAdapter) conn(desc *device.Descriptor) (net.Conn, error) {
	addr := net.JoinHostPort(desc.Host, fmt.Sprintf("%d", desc.Port))
	if c, ok := a.conns[addr]; ok {
		return c, nil
	}
	c, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}
	a.conns[addr] = c
	return c, nil
}
