// Package producer turns broker feeds into pending cues.
//
// Two mappers ship with the core: the audio mapper renders the
// listener's RMS/peak/beat analysis into strip frames and scanner
// motion, and the show mapper applies the operator's mode changes and
// colour selection.
//
// Producers only enqueue. The resolver decides what wins each tick;
// no mapper ever talks to a device or the dispatcher directly.
package producer
