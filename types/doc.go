// Package types provides core types used across the eduflow platform.
// This package has ZERO dependencies on other eduflow packages to avoid
// circular imports. All other packages should import types from here.
package types
