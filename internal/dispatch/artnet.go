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

const (
	dmxUniverseSize = 512
	artDMXOpCode    = 0x5000
	artProtVersion  = 14
)

// artNetHeader is the fixed 8-byte Art-Net packet identifier.
var artNetHeader = []byte("Art-Net\x00")

// dmxUniverse holds the full channel image for one universe plus the
// rolling Art-DMX sequence counter.
type dmxUniverse struct {
	data [dmxUniverseSize]byte
	seq  uint8
}

// artGateway is one Art-Net node (one UDP endpoint) and the universes
// it carries.
type artGateway struct {
	conn      net.Conn
	universes map[int]*dmxUniverse
}

// ArtNetAdapter transmits DMX channel data as Art-DMX packets over UDP.
//
// The adapter keeps a persistent channel image per universe, so a
// payload addressing one fixture re-sends the whole universe with every
// other fixture's channels intact. Sends to the same gateway serialise
// on the adapter lock; gateways never see interleaved universe writes.
type ArtNetAdapter struct {
	mu       sync.Mutex
	gateways map[string]*artGateway
}

// NewArtNetAdapter creates an adapter with no open connections.
// Gateways are dialled lazily on first send.
func NewArtNetAdapter() *ArtNetAdapter {
	return &ArtNetAdapter{gateways: make(map[string]*artGateway)}
}

// Protocol returns the protocol class this adapter serves.
func (a *ArtNetAdapter) Protocol() device.ProtocolClass {
	return device.ProtocolDMX
}

// Send encodes the payload into the device's channel range and
// transmits the full universe as one Art-DMX packet.
func (a *ArtNetAdapter) Send(ctx context.Context, desc *device.Descriptor, p cue.Payload) error {
	channels, err := encodeChannels(desc, p)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	gw, err := a.gateway(desc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	uni, ok := gw.universes[desc.Universe]
	if !ok {
		uni = &dmxUniverse{}
		gw.universes[desc.Universe] = uni
	}
	copy(uni.data[desc.BaseAddress-1:], channels)
	uni.seq++
	if uni.seq == 0 {
		uni.seq = 1
	}

	packet := buildArtDMX(uni.seq, desc.Universe, uni.data[:])

	if deadline, ok := ctx.Deadline(); ok {
		_ = gw.conn.SetWriteDeadline(deadline)
	}
	if _, err := gw.conn.Write(packet); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// Close releases all gateway connections.
func (a *ArtNetAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var first error
	for addr, gw := range a.gateways {
		if err := gw.conn.Close(); err != nil && first == nil {
			first = err
		}
		delete(a.gateways, addr)
	}
	return first
}

// gateway returns the connection for the device's node, dialling it if
// needed. Caller holds a.mu.
func (a *ArtNetAdapter) gateway(desc *device.Descriptor) (*artGateway, error) {
	addr := net.JoinHostPort(desc.Host, fmt.Sprintf("%d", desc.Port))
	if gw, ok := a.gateways[addr]; ok {
		return gw, nil
	}

	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}
	gw := &artGateway{conn: conn, universes: make(map[int]*dmxUniverse)}
	a.gateways[addr] = gw
	return gw, nil
}

// buildArtDMX frames one universe as an Art-DMX packet.
//
// Layout: "Art-Net\x00", OpCode 0x5000 little-endian, protocol version
// 14 big-endian, sequence, physical port, universe little-endian, data
// length big-endian, channel data.
func buildArtDMX(seq uint8, universe int, data []byte) []byte {
	packet := make([]byte, 18+len(data))
	copy(packet, artNetHeader)
	binary.LittleEndian.PutUint16(packet[8:10], artDMXOpCode)
	binary.BigEndian.PutUint16(packet[10:12], artProtVersion)
	packet[12] = seq
	packet[13] = 0
	binary.LittleEndian.PutUint16(packet[14:16], uint16(universe))
	binary.BigEndian.PutUint16(packet[16:18], uint16(len(data)))
	copy(packet[18:], data)
	return packet
}

// encodeChannels maps a payload onto the device's DMX channel range.
//
// Fixture layouts follow the installed hardware: colour fixtures use
// R, G, B, dimmer, strobe; moving heads use pan, tilt, speed; pattern
// cues drive the fixture's program and intensity channels. Blackout
// and recovery zero the whole range.
func encodeChannels(desc *device.Descriptor, p cue.Payload) ([]byte, error) {
	ch := make([]byte, desc.Channels)

	set := func(i int, v uint8) {
		if i < len(ch) {
			ch[i] = v
		}
	}

	switch p.Kind {
	case cue.KindColor:
		set(0, p.Color.R)
		set(1, p.Color.G)
		set(2, p.Color.B)
		set(3, p.Dimmer)
		set(4, p.Strobe)
	case cue.KindMotion:
		set(0, p.Pan)
		set(1, p.Tilt)
		set(2, p.Speed)
	case cue.KindPattern:
		set(0, p.Pattern)
		set(1, p.Intensity)
	case cue.KindFrame:
		if len(p.Frame) > desc.Channels {
			return nil, fmt.Errorf("%w: %d channels for %d slots",
				ErrPayloadTooLarge, len(p.Frame), desc.Channels)
		}
		copy(ch, p.Frame)
	case cue.KindBlackout, cue.KindRecover:
		// Zeroed range: dark fixture, motors idle.
	default:
		return nil, fmt.Errorf("dispatch: no dmx encoding for kind %q", p.Kind)
	}

	return ch, nil
}
