// Package bus provides the in-process system event bus.
//
// Workflow and process lifecycle transitions are published as
// types.SystemEvent values; observers subscribe by event type or via
// AllEvents to watch every transition. Delivery is asynchronous and
// best-effort: when the internal buffer is full, events are dropped
// with a warning rather than blocking the publisher.
package bus
