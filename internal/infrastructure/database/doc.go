// Package database manages the SQLite connection backing the show
// journal.
//
// The schema is a single append-only table created by the journal
// package at startup; there is no migration machinery. SQLite fits the
// deployment: one process, one writer, occasional reads from the HTTP
// API.
package database
