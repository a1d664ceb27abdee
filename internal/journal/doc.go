// Package journal keeps the persistent record of safety-relevant show
// events: panics, forced blackouts, degraded devices and recoveries.
//
// The record answers the after-show questions: when did the rig go
// dark, why, and who brought it back.
package journal
