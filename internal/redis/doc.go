// Package redis implements the optional Redis-backed presence store.
//
// Presence records are kept in a single hash keyed by display name, so a
// restarted instance resumes with the last seen heartbeat times instead
// of reporting every display offline until the next heartbeat.
package redis
