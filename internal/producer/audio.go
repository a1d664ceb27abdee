package producer

import (
	"encoding/json"
	"fmt"

	"github.com/admiral-vulcan/musictolight-core/internal/cue"
	"github.com/admiral-vulcan/musictolight-core/internal/resolve"
)

// AudioState is one message from the audio analysis feed.
type AudioState struct {
	RMS  float64 `json:"rms"`
	Peak float64 `json:"peak"`
	Beat bool    `json:"beat"`
}

// Audio cue priorities. Beat-driven motion outranks the rolling
// visualizer so a beat hit lands even when both target the same tick.
const (
	priorityVisualizer = 10
	priorityBeat       = 20
)

// AudioMapper turns audio analysis messages into cues: a level meter
// frame for the LED strip on every message, a motion cue for the
// scanner on each beat.
type AudioMapper struct {
	StripDevice   string
	ScannerDevice string

	modes *resolve.ModeState
	emit  EmitFunc
}

// NewAudioMapper creates the audio feed mapper.
//
// Parameters:
//   - stripDevice: Registry id of the visualizer strip
//   - scannerDevice: Registry id of the beat-following scanner
//   - modes: Mode state for the current colour selection
//   - emit: Sink for produced cues
func NewAudioMapper(stripDevice, scannerDevice string, modes *resolve.ModeState, emit EmitFunc) *AudioMapper {
	return &AudioMapper{
		StripDevice:   stripDevice,
		ScannerDevice: scannerDevice,
		modes:         modes,
		emit:          emit,
	}
}

// Name identifies this mapper as the audio source.
func (m *AudioMapper) Name() string { return "audio" }

// Handle parses one audio state message and emits the resulting cues.
func (m *AudioMapper) Handle(payload []byte) error {
	var state AudioState
	if err := json.Unmarshal(payload, &state); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}
	if state.RMS < 0 || state.RMS > 1 || state.Peak < 0 || state.Peak > 1 {
		return fmt.Errorf("%w: levels out of [0,1]", ErrMalformedFeed)
	}

	modes := m.modes.Snapshot()

	m.emit(cue.New(m.StripDevice, priorityVisualizer, m.Name(), m.meterFrame(state, modes)))

	if state.Beat {
		m.emit(cue.New(m.ScannerDevice, priorityBeat, m.Name(), cue.Payload{
			Kind:  cue.KindMotion,
			Pan:   levelByte(state.Peak),
			Tilt:  levelByte(state.RMS),
			Speed: 255,
		}))
	}
	return nil
}

// meterFrame renders the RMS level as lit pixels in the primary colour.
// The frame length is a level meter, not the strip length; the adapter
// pads the remainder dark.
func (m *AudioMapper) meterFrame(state AudioState, modes resolve.Modes) cue.Payload {
	const meterPixels = 64
	lit := int(state.RMS * meterPixels)
	if lit > meterPixels {
		lit = meterPixels
	}

	frame := make([]byte, meterPixels*3)
	for i := 0; i < lit; i++ {
		frame[i*3] = modes.Primary.R
		frame[i*3+1] = modes.Primary.G
		frame[i*3+2] = modes.Primary.B
	}

	return cue.Payload{
		Kind:      cue.KindFrame,
		Frame:     frame,
		Intensity: levelByte(state.RMS),
	}
}

// levelByte scales a [0,1] level to a channel byte.
func levelByte(level float64) uint8 {
	v := int(level * 255)
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v)
}
