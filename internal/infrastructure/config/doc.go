// Package config loads and validates MusicToLight Core configuration.
//
// Configuration is layered: hardcoded defaults, then the YAML file, then
// MTL_* environment variable overrides. Validation runs last; a config
// that fails validation prevents the process from starting, because a
// half-configured core could leave physical actuators in undefined states.
//
// The device registry itself lives in a separate YAML file referenced by
// registry.path and is parsed by the device package.
package config
