// Package session houses concrete implementations of core.SessionStore.
// The interface itself lives in the core package so that agents and the
// runner never depend on a concrete storage backend; only the wiring layer
// decides which implementation to instantiate.
package session
