package device

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Registry is the static mapping from logical device ids to descriptors.
//
// It is populated once at startup from the registry file and read-only
// thereafter, so lookups need no locking.
type Registry struct {
	byID    map[string]*Descriptor
	ordered []*Descriptor
}

// registryFile is the on-disk shape of the device registry.
type registryFile struct {
	Devices []Descriptor `yaml:"devices"`
}

// LoadRegistry reads and validates the device registry file.
//
// Parameters:
//   - path: Path to the YAML registry file
//
// Returns:
//   - *Registry: Validated registry in file order
//   - error: If the file cannot be read or any descriptor is invalid
//     (startup is aborted; a malformed registry is fatal)
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing registry file: %w", err)
	}

	return NewRegistry(file.Devices)
}

// NewRegistry builds a registry from descriptors, preserving their order.
//
// Returns:
//   - *Registry: Validated registry
//   - error: ErrDuplicateDevice or ErrInvalidDescriptor on bad input
func NewRegistry(descriptors []Descriptor) (*Registry, error) {
	r := &Registry{
		byID:    make(map[string]*Descriptor, len(descriptors)),
		ordered: make([]*Descriptor, 0, len(descriptors)),
	}

	for i := range descriptors {
		d := descriptors[i]
		if err := validateDescriptor(&d); err != nil {
			return nil, err
		}
		if _, exists := r.byID[d.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateDevice, d.ID)
		}
		r.byID[d.ID] = &d
		r.ordered = append(r.ordered, &d)
	}

	return r, nil
}

// validateDescriptor checks a single descriptor for startup errors.
func validateDescriptor(d *Descriptor) error {
	if d.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDescriptor)
	}
	if !d.Protocol.Valid() {
		return fmt.Errorf("%w: %q: unknown protocol %q", ErrInvalidDescriptor, d.ID, d.Protocol)
	}
	for _, k := range d.Capabilities {
		if !k.Valid() {
			return fmt.Errorf("%w: %q: unknown capability %q", ErrInvalidDescriptor, d.ID, k)
		}
	}
	if d.MinIntervalMS < 0 {
		return fmt.Errorf("%w: %q: negative min_interval_ms", ErrInvalidDescriptor, d.ID)
	}

	switch d.Protocol {
	case ProtocolDMX:
		if d.BaseAddress < 1 || d.BaseAddress > 512 {
			return fmt.Errorf("%w: %q: base_address must be 1-512", ErrInvalidDescriptor, d.ID)
		}
		if d.Channels < 1 || d.BaseAddress+d.Channels-1 > 512 {
			return fmt.Errorf("%w: %q: channel range exceeds universe", ErrInvalidDescriptor, d.ID)
		}
	case ProtocolPixelUDP:
		if d.Pixels < 1 {
			return fmt.Errorf("%w: %q: pixel count required", ErrInvalidDescriptor, d.ID)
		}
		if d.Host == "" {
			return fmt.Errorf("%w: %q: host required", ErrInvalidDescriptor, d.ID)
		}
	case ProtocolRFTrigger:
		if d.Host == "" {
			return fmt.Errorf("%w: %q: host required", ErrInvalidDescriptor, d.ID)
		}
	}

	return nil
}

// Describe returns the descriptor for a device id.
//
// Returns:
//   - *Descriptor: The device's descriptor (shared, read-only)
//   - error: ErrUnknownDevice if the id is not registered
func (r *Registry) Describe(deviceID string) (*Descriptor, error) {
	d, ok := r.byID[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, deviceID)
	}
	return d, nil
}

// All returns every descriptor in registry file order.
// The returned slice is shared; callers must not modify it.
func (r *Registry) All() []*Descriptor {
	return r.ordered
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	return len(r.ordered)
}
