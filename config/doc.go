// Package config provides unified configuration loading for eduflow.
//
// Precedence: built-in defaults → YAML file → environment variables
// (EDUFLOW_* prefix).
package config
