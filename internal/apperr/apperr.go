// Package apperr defines the error categories shared by the classification
// and burn pipelines.
//
// Error taxonomy
//
//	ConfigError        unsupported fuel scheme, region, unit system or a
//	                   missing threshold entry. Fatal; raised before any
//	                   object is classified. Matches ErrUnsupportedConfig.
//
//	UnresolvedError    one or more objects could not be given a land-cover
//	                   label. Carries the join key of every such object.
//
//	ServiceError       an external collaborator (segmenter, classifier,
//	                   simulator, raster store) failed. Fatal for the
//	                   enclosing zone and never retried.
//
// Ambiguous classification is not an error: those objects are routed to the
// zone's confusion set.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnsupportedConfig is the sentinel wrapped by every *ConfigError.
var ErrUnsupportedConfig = errors.New("unsupported configuration")

// ConfigError reports a configuration value the pipeline cannot run with.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unsupported %s %q", e.Field, e.Value)
	}
	return fmt.Sprintf("unsupported %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrUnsupportedConfig }

// Config creates a ConfigError.
func Config(field, value, reason string) error {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}

// IsConfig reports whether err is (or wraps) a configuration error.
func IsConfig(err error) bool {
	return errors.Is(err, ErrUnsupportedConfig)
}

// UnresolvedObject identifies one object that left the pipeline without a
// label.
type UnresolvedObject struct {
	Zone    string `json:"zone"`
	JoinKey int    `json:"join_key"`
	Branch  string `json:"branch"`
	Reason  string `json:"reason"`
}

// UnresolvedError is a data-quality failure listing every unlabelled object.
type UnresolvedError struct {
	Objects []UnresolvedObject
}

func (e *UnresolvedError) Error() string {
	if len(e.Objects) == 0 {
		return "no unresolved objects"
	}
	const maxListed = 10
	parts := make([]string, 0, maxListed)
	for i, o := range e.Objects {
		if i == maxListed {
			parts = append(parts, fmt.Sprintf("... and %d more", len(e.Objects)-maxListed))
			break
		}
		parts = append(parts, fmt.Sprintf("%s/%d (%s)", o.Zone, o.JoinKey, o.Reason))
	}
	return fmt.Sprintf("%d objects unresolved: %s", len(e.Objects), strings.Join(parts, ", "))
}

// JoinKeys returns the sorted join keys of the unresolved objects.
func (e *UnresolvedError) JoinKeys() []int {
	keys := make([]int, len(e.Objects))
	for i, o := range e.Objects {
		keys[i] = o.JoinKey
	}
	sort.Ints(keys)
	return keys
}

// Unresolved returns an *UnresolvedError for objs, or nil when objs is empty.
func Unresolved(objs []UnresolvedObject) error {
	if len(objs) == 0 {
		return nil
	}
	return &UnresolvedError{Objects: objs}
}

// AsUnresolved extracts an *UnresolvedError from err.
func AsUnresolved(err error) (*UnresolvedError, bool) {
	var u *UnresolvedError
	if errors.As(err, &u) {
		return u, true
	}
	return nil, false
}

// ServiceError wraps a failure returned by an external collaborator.
type ServiceError struct {
	Service string
	Code    int
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s failed with code %d: %v", e.Service, e.Code, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Service wraps err as a ServiceError. A nil err returns nil.
func Service(service string, code int, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Service: service, Code: code, Err: err}
}

// AsService extracts a *ServiceError from err.
func AsService(err error) (*ServiceError, bool) {
	var s *ServiceError
	if errors.As(err, &s) {
		return s, true
	}
	return nil, false
}
