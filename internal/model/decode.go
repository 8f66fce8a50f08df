package model

import (
	"errors"
	"fmt"
	"time"
)

// DecodeError reports a record that could not be decoded because a
// required field is missing or malformed. Only that record is dropped.
type DecodeError struct {
	Collection string
	ID         string
	Field      string
	Reason     string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s/%s: field %q %s", e.Collection, e.ID, e.Field, e.Reason)
}

// IsDecodeError reports whether err (or any error in its chain) is a
// DecodeError.
func IsDecodeError(err error) bool {
	var decErr *DecodeError
	return errors.As(err, &decErr)
}

// Decoder turns one raw document into a typed record.
type Decoder[T any] func(id string, f Fields) (T, error)

// DecodeAll decodes every document, skipping the ones that fail. The
// returned errors are the per-record failures, in input order.
func DecodeAll[T any](dec Decoder[T], ids []string, fields []Fields) ([]T, []error) {
	out := make([]T, 0, len(ids))
	var errs []error
	for i, id := range ids {
		rec, err := dec(id, fields[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, rec)
	}
	return out, errs
}

// fieldReader accumulates the first required-field failure while the
// record is being decoded so decoders read straight down the schema.
type fieldReader struct {
	collection string
	id         string
	f          Fields
	err        *DecodeError
}

func newReader(collection, id string, f Fields) *fieldReader {
	if f == nil {
		f = Fields{}
	}
	return &fieldReader{collection: collection, id: id, f: f}
}

func (r *fieldReader) fail(field, reason string) {
	if r.err == nil {
		r.err = &DecodeError{Collection: r.collection, ID: r.id, Field: field, Reason: reason}
	}
}

func (r *fieldReader) requiredString(name string) string {
	s, ok := r.f.OptString(name)
	switch {
	case !ok:
		r.fail(name, "is malformed")
		return ""
	case s == nil || *s == "":
		r.fail(name, "is missing")
		return ""
	}
	return *s
}

func (r *fieldReader) requiredTime(name string) time.Time {
	t, ok := r.f.OptTime(name)
	switch {
	case !ok:
		r.fail(name, "is malformed")
		return time.Time{}
	case t == nil:
		r.fail(name, "is missing")
		return time.Time{}
	}
	return *t
}

func (r *fieldReader) requiredFloat(name string) float64 {
	n, ok := r.f.OptFloat(name)
	switch {
	case !ok:
		r.fail(name, "is malformed")
		return 0
	case n == nil:
		r.fail(name, "is missing")
		return 0
	}
	return *n
}

// Optional readers treat malformed values as unset.

func (r *fieldReader) optString(name string) *string {
	s, _ := r.f.OptString(name)
	return s
}

func (r *fieldReader) str(name string) string {
	return r.f.String(name)
}

func (r *fieldReader) optTime(name string) *time.Time {
	t, _ := r.f.OptTime(name)
	return t
}

func (r *fieldReader) optFloat(name string) *float64 {
	n, _ := r.f.OptFloat(name)
	return n
}

func (r *fieldReader) optInt(name string) *int64 {
	n, _ := r.f.OptInt(name)
	return n
}

func (r *fieldReader) optBool(name string) *bool {
	b, _ := r.f.OptBool(name)
	return b
}

func (r *fieldReader) strings(name string) []string {
	return r.f.Strings(name)
}

func (r *fieldReader) done() error {
	if r.err != nil {
		return r.err
	}
	return nil
}

// encoder builds the canonical snake_case field map used on the write
// path. Unset optionals are omitted rather than written as zero values.
type encoder Fields

func (e encoder) str(name, v string) {
	if v != "" {
		e[snakeCase(name)] = v
	}
}

func (e encoder) optStr(name string, v *string) {
	if v != nil {
		e[snakeCase(name)] = *v
	}
}

func (e encoder) timestamp(name string, v time.Time) {
	if !v.IsZero() {
		e[snakeCase(name)] = v.UTC()
	}
}

func (e encoder) optTimestamp(name string, v *time.Time) {
	if v != nil {
		e[snakeCase(name)] = v.UTC()
	}
}

func (e encoder) optFloat(name string, v *float64) {
	if v != nil {
		e[snakeCase(name)] = *v
	}
}

func (e encoder) optInt(name string, v *int64) {
	if v != nil {
		e[snakeCase(name)] = *v
	}
}

func (e encoder) optBool(name string, v *bool) {
	if v != nil {
		e[snakeCase(name)] = *v
	}
}

func (e encoder) strings(name string, v []string) {
	if v != nil {
		e[snakeCase(name)] = append([]string(nil), v...)
	}
}
