// Package database provides gorm connection management for the execution
// history store. This package is internal and should not be imported by
// external projects.
package database
