// Package notifications publishes pipeline lifecycle events to an ntfy
// topic when one is configured, and degrades to a noop otherwise.
package notifications
