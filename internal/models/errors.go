package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the four failure classes. Typed errors below match
// their sentinel through errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrProtocol      = errors.New("protocol error")
	ErrIntegrity     = errors.New("integrity error")
	ErrConfiguration = errors.New("configuration error")
)

// ValidationError reports a state value outside its enumerated domain.
type ValidationError struct {
	Dimension string
	Value     int
	Label     string // set when the value came from an unparseable label
}

func (e *ValidationError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("invalid %s label %q", e.Dimension, e.Label)
	}
	return fmt.Sprintf("invalid %s value %d", e.Dimension, e.Value)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ProtocolError reports an operation invoked outside its required state.
type ProtocolError struct {
	Op    string
	State string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s not allowed while %s", e.Op, e.State)
}

// Is matches ErrProtocol.
func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// IntegrityError reports an inconsistency between emulator state and the
// files in its folder.
type IntegrityError struct {
	StartDay int
	EndDay   int
	FileType string
	Detail   string
}

func (e *IntegrityError) Error() string {
	msg := fmt.Sprintf("integrity check failed for round %03d-%03d", e.StartDay, e.EndDay)
	if e.FileType != "" {
		msg += fmt.Sprintf(" (%s file)", e.FileType)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches ErrIntegrity.
func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// ConfigurationError reports an unusable configuration.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + e.Detail
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }
