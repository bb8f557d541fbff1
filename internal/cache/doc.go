// Package cache provides the redis-backed workflow status cache.
// This package is internal and should not be imported by external projects.
package cache
