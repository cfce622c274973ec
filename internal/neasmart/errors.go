package neasmart

import "fmt"

// ValidationError marks vendor JSON that cannot be reconciled with the
// expected schema. The API is undocumented and has changed shape between
// versions without notice; a fetch cycle hitting this logs loudly and keeps
// the previous snapshot instead of crashing.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("neasmart: invalid response at %s: %s", e.Path, e.Reason)
}

func validationErr(path, format string, args ...any) *ValidationError {
	return &ValidationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
