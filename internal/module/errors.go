package module

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownModule is wrapped by the ConfigError returned for unregistered
// module names.
var ErrUnknownModule = errors.New("unknown module")

// ConfigError reports an invalid module configuration: a bad qualifier
// combination, a missing required binding, or an unknown module. It is never
// retried.
type ConfigError struct {
	Module string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("module")
	if e.Module != "" {
		b.WriteString(" ")
		b.WriteString(e.Module)
	}
	b.WriteString(": configuration error")
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// MissingProductError is returned when a module finished without creating a
// required or demanded product.
type MissingProductError struct {
	Module  string
	Product string
	Path    string
}

func (e *MissingProductError) Error() string {
	return fmt.Sprintf("module %s: product %s was not produced at %s", e.Module, e.Product, e.Path)
}
