package model

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a fatal, startup-time configuration problem
	ErrConfiguration = errors.New("configuration error")

	// ErrModelNotTrained is returned by predictions against an untrained classifier
	ErrModelNotTrained = errors.New("model not trained")

	// ErrInsufficientData marks a training set that cannot produce a meaningful model
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrSchemaMismatch marks persisted state trained against another factor schema
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// ConfigError describes an invalid schema or engine configuration
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// SchemaMismatchError is returned when persisted state does not match the registered schema
type SchemaMismatchError struct {
	Persisted string
	Current   string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: persisted state trained against %q, current schema is %q", e.Persisted, e.Current)
}

func (e *SchemaMismatchError) Unwrap() error {
	return ErrSchemaMismatch
}
