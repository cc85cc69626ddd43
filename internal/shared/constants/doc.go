// Package constants centralizes cross-cutting defaults and limits so that
// commands, the execution engine, and repositories agree on one value.
package constants
