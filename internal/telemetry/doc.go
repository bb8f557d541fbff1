// Package telemetry wraps OpenTelemetry SDK initialization.
// This package is internal and should not be imported by external projects.
package telemetry
