package service

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
	// ErrBusy means another toggle for the same (image, user) pair holds the lock.
	ErrBusy = errors.New("reaction already in progress")
)

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}

// ValidationError carries per-field problems back to the caller.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func invalidField(field, problem string) error {
	return &ValidationError{Fields: map[string]string{field: problem}}
}

// UpstreamFetchError reports an image link that could not be fetched. A zero
// StatusCode means the transfer itself failed.
type UpstreamFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("upstream fetch %s: %v", e.URL, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

// ConsistencyError describes a broken invariant between or within the image
// and user documents. It is logged and counted, never returned on reads.
type ConsistencyError struct {
	Invariant string
	ImageID   string
	UserID    string
	Detail    string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency %s violated (image=%s user=%s): %s", e.Invariant, e.ImageID, e.UserID, e.Detail)
}

const (
	invariantDisjoint  = "disjoint_reactions"
	invariantSymmetric = "symmetric_reactions"
)

// StoreError wraps a persistence failure. Callers see a generic failure; the
// cause is for logs.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Fields: map[string]string{"body": err.Error()}}
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		problem := fe.Tag()
		if fe.Param() != "" {
			problem += "=" + fe.Param()
		}
		fields[fe.Field()] = problem
	}
	return &ValidationError{Fields: fields}
}
