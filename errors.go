package lahc

import "errors"

// ErrConfiguration matches every *ConfigError via errors.Is.
var ErrConfiguration = &ConfigError{}

// ErrUnimplemented matches every *UnimplementedError via errors.Is.
var ErrUnimplemented = &UnimplementedError{}

// ErrAlreadyRun is returned by Run on a solver that has already stopped.
var ErrAlreadyRun = errors.New("lahc: solver has already run")

// ConfigError reports an invalid construction-time option.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "lahc: invalid configuration"
	}
	return "lahc: invalid configuration: " + e.Field + " " + e.Reason
}

func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

// UnimplementedError is returned the first time the solver needs a
// collaborator the caller did not supply.
type UnimplementedError struct {
	Capability string
}

func (e *UnimplementedError) Error() string {
	if e.Capability == "" {
		return "lahc: capability not implemented"
	}
	return "lahc: capability not implemented: " + e.Capability
}

func (e *UnimplementedError) Is(target error) bool {
	_, ok := target.(*UnimplementedError)
	return ok
}
