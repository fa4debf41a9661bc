package policy

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrEmptyPolicyList is returned instead of a report when no policies were requested
	ErrEmptyPolicyList = errors.New("at least one policy must be requested")
	// ErrRegistrySealed is returned when registering into a registry that is read only
	ErrRegistrySealed = errors.New("policy registry is sealed")
)

// DuplicatePolicyError is returned when a policy name is registered twice
type DuplicatePolicyError struct {
	Name string
}

func (e *DuplicatePolicyError) Error() string {
	return fmt.Sprintf("policy already registered: %s", e.Name)
}

// UnknownPolicyError is recorded as the failure of a request naming an unregistered policy
type UnknownPolicyError struct {
	Name string
}

func (e *UnknownPolicyError) Error() string {
	return fmt.Sprintf("unknown policy: %s", e.Name)
}

// PanicError wraps a panic raised inside a policy
type PanicError struct {
	Policy    string
	Recovered any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("policy<%s> panicked: %v", e.Policy, e.Recovered)
}

// MalformedPresentationError is returned by holder binding when the presentation lacks the structure needed
// to compare subjects
type MalformedPresentationError struct {
	Reason string
}

func (e *MalformedPresentationError) Error() string {
	return "malformed presentation: " + e.Reason
}

// HolderBindingMismatchError lists the credential subjects that differ from the presenter
type HolderBindingMismatchError struct {
	Presenter  string
	Mismatched []string
}

func (e *HolderBindingMismatchError) Error() string {
	return fmt.Sprintf("presenter<%s> is not the subject of credentials with subjects: %s", e.Presenter, strings.Join(e.Mismatched, ", "))
}

// ArgumentError is returned when a policy receives arguments it cannot use
type ArgumentError struct {
	Policy string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for policy<%s>: %s", e.Policy, e.Reason)
}
