// Package notifications publishes task outcomes to ntfy.
//
// The processing loop reports finished tasks and loop aborts through the
// Service interface. When no topic is configured NewService returns a no-op
// implementation, so callers never need to check whether notifications are
// enabled.
package notifications
