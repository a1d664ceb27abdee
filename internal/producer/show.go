package producer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/admiral-vulcan/musictolight-core/internal/cue"
	"github.com/admiral-vulcan/musictolight-core/internal/resolve"
)

// ShowState is one message from the operator's show control feed.
// All fields are optional; absent fields leave the mode untouched.
type ShowState struct {
	Panic         *bool     `json:"panic,omitempty"`
	Chill         *bool     `json:"chill,omitempty"`
	StrobeEnabled *bool     `json:"strobe_enabled,omitempty"`
	Primary       *ColorRGB `json:"primary,omitempty"`
	Secondary     *ColorRGB `json:"secondary,omitempty"`
	Fog           *bool     `json:"fog,omitempty"`
}

// ColorRGB is the feed's colour representation.
type ColorRGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// priorityShow ranks operator colour cues above audio-driven ones.
const priorityShow = 30

// Safety is the slice of the watchdog the show mapper needs.
type Safety interface {
	TriggerPanic(ctx context.Context, reason, actor string)
}

// ShowMapper applies operator show-state messages: mode changes go to
// the mode state, the panic flag escalates to the watchdog, colour
// selection and fog toggles become cues.
type ShowMapper struct {
	SpotDevice string
	FogDevice  string

	modes  *resolve.ModeState
	safety Safety
	emit   EmitFunc
}

// NewShowMapper creates the show feed mapper.
func NewShowMapper(spotDevice, fogDevice string, modes *resolve.ModeState, safety Safety, emit EmitFunc) *ShowMapper {
	return &ShowMapper{
		SpotDevice: spotDevice,
		FogDevice:  fogDevice,
		modes:      modes,
		safety:     safety,
		emit:       emit,
	}
}

// Name identifies this mapper as the show source.
func (m *ShowMapper) Name() string { return "show" }

// Handle parses one show state message, applies mode changes and emits
// the resulting cues.
func (m *ShowMapper) Handle(payload []byte) error {
	var state ShowState
	if err := json.Unmarshal(payload, &state); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}

	if state.Panic != nil && *state.Panic {
		m.safety.TriggerPanic(context.Background(), "panic flag in show feed", m.Name())
		// Nothing else from this message matters once the show panics.
		return nil
	}

	delta := resolve.Delta{
		Chill:         state.Chill,
		StrobeEnabled: state.StrobeEnabled,
	}
	if state.Primary != nil {
		delta.Primary = &cue.RGB{R: state.Primary.R, G: state.Primary.G, B: state.Primary.B}
	}
	if state.Secondary != nil {
		delta.Secondary = &cue.RGB{R: state.Secondary.R, G: state.Secondary.G, B: state.Secondary.B}
	}
	modes := m.modes.Apply(delta)

	if state.Primary != nil {
		m.emit(cue.New(m.SpotDevice, priorityShow, m.Name(), cue.Payload{
			Kind:   cue.KindColor,
			Color:  modes.Primary,
			Dimmer: 255,
		}))
	}

	if state.Fog != nil {
		m.emit(cue.New(m.FogDevice, priorityShow, m.Name(), cue.Payload{
			Kind: cue.KindTrigger,
			On:   *state.Fog,
		}))
	}
	return nil
}
