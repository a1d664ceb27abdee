package dispatch

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"github.com/admiral-vulcan/musictolight-core/internal/cue"
	"github.com/admiral-vulcan/musictolight-core/internal/device"
)

// pixelHeader prefixes every strip datagram so the controller firmware
// can reject stray traffic on its port.
var pixelHeader = []byte("mls_")

// PixelAdapter streams full-strip RGB frames to addressable LED
// controllers over UDP.
//
// Wire format per datagram: "mls_" magic, LED count as little-endian
// uint16, then one R,G,B triple per LED.
type PixelAdapter struct {
	mu    sync.Mutex
	conns map[string]net.Conn
}

// NewPixelAdapter creates an adapter with no open connections.
func NewPixelAdapter() *PixelAdapter {
	return &PixelAdapter{conns: make(map[string]net.Conn)}
}

// Protocol returns the protocol class this adapter serves.
func (a *PixelAdapter) Protocol() device.ProtocolClass {
	return device.ProtocolPixelUDP
}

// Send encodes the payload as one full-strip frame and transmits it.
func (a *PixelAdapter) Send(ctx context.Context, desc *device.Descriptor, p cue.Payload) error {
	frame, err := encodeStripFrame(desc, p)
	if err != nil {
		return err
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
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// Close releases all controller connections.
func (a *PixelAdapter) Close() error {
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

// conn returns the connection for the strip, dialling it if needed.
// Caller holds a.mu.
func (a *PixelAdapter) conn(desc *device.Descriptor) (net.Conn, error) {
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

// encodeStripFrame builds the full datagram for one strip update.
//
// Colour payloads fill every LED with the same colour; frame payloads
// carry raw RGB triples and are padded with darkness when shorter than
// the strip. Blackout and recovery clear the strip.
func encodeStripFrame(desc *device.Descriptor, p cue.Payload) ([]byte, error) {
	body := make([]byte, desc.Pixels*3)

	switch p.Kind {
	case cue.KindColor:
		for i := 0; i < desc.Pixels; i++ {
			body[i*3] = p.Color.R
			body[i*3+1] = p.Color.G
			body[i*3+2] = p.Color.B
		}
	case cue.KindFrame:
		if len(p.Frame) > len(body) {
			return nil, fmt.Errorf("%w: %d bytes for %d leds",
				ErrPayloadTooLarge, len(p.Frame), desc.Pixels)
		}
		copy(body, p.Frame)
	case cue.KindBlackout, cue.KindRecover:
		// Zeroed body: every LED dark.
	case cue.KindPattern:
		// Patterns render controller-side; send the selector in the
		// first triple and intensity in the second.
		if desc.Pixels >= 2 {
			body[0] = p.Pattern
			body[3] = p.Intensity
		}
	default:
		return nil, fmt.Errorf("dispatch: no strip encoding for kind %q", p.Kind)
	}

	frame := make([]byte, 0, len(pixelHeader)+2+len(body))
	frame = append(frame, pixelHeader...)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(desc.Pixels))
	frame = append(frame, body...)

	if desc.MaxPayload > 0 && len(frame) > desc.MaxPayload {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, len(frame), desc.MaxPayload)
	}
	return frame, nil
}
