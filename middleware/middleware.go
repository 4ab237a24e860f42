// Package middleware validates HTTP request bodies against a form config.
//
// A Validator builds a fresh form per request, patches the decoded JSON body
// into it and reports the nested error object. ValidateJSON wraps it as
// net/http middleware; the echo and gin sub-modules adapt it to those
// frameworks.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/reoring/dynform"
	eng "github.com/reoring/dynform/internal/engine"
)

// DefaultMaxBodyBytes bounds the request body read by a Validator.
const DefaultMaxBodyBytes int64 = 1 << 20

// ErrBadBody is wrapped by every error caused by an unreadable or malformed
// request body.
var ErrBadBody = errors.New("middleware: bad request body")

// Issue is a body-level problem such as a duplicate object key.
type Issue struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Result is the outcome of checking one body.
type Result struct {
	// Value is the form value with disabled controls removed.
	Value    map[string]any `json:"value,omitempty"`
	Errors   map[string]any `json:"errors,omitempty"`
	Messages map[string]any `json:"messages,omitempty"`
	Issues   []Issue        `json:"issues,omitempty"`
}

// Valid reports whether the body produced neither issues nor errors.
func (r Result) Valid() bool { return len(r.Issues) == 0 && len(r.Errors) == 0 }

// Validator checks request bodies against one validated form config.
type Validator struct {
	configs  []dynform.FieldConfig
	opts     []dynform.Option
	maxBytes int64
}

// NewValidator validates input once (see dynform.ValidateConfig). Config
// errors are returned as dynform.ConfigErrors; a form config used at an HTTP
// boundary must be clean.
func NewValidator(input any, opts ...dynform.Option) (*Validator, error) {
	res := dynform.ValidateConfig(input, opts...)
	if err := res.Err(); err != nil {
		return nil, err
	}
	return &Validator{configs: res.Configs, opts: opts, maxBytes: DefaultMaxBodyBytes}, nil
}

// WithMaxBytes returns a copy of v reading at most n body bytes.
func (v *Validator) WithMaxBytes(n int64) *Validator {
	cp := *v
	cp.maxBytes = n
	return &cp
}

// Read reads and checks a body from r.
func (v *Validator) Read(ctx context.Context, r io.Reader) (Result, error) {
	data, err := io.ReadAll(io.LimitReader(r, v.maxBytes+1))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBadBody, err)
	}
	if int64(len(data)) > v.maxBytes {
		return Result{}, fmt.Errorf("%w: body exceeds %d bytes", ErrBadBody, v.maxBytes)
	}
	return v.Check(ctx, data)
}

// Check decodes data as a JSON object and validates it. Duplicate keys are
// reported as issues without building a form.
func (v *Validator) Check(ctx context.Context, data []byte) (Result, error) {
	if dups := eng.DetectDuplicateKeys(data, 20); len(dups) > 0 {
		res := Result{}
		for _, d := range dups {
			if d.Code == "parse_error" {
				return Result{}, fmt.Errorf("%w: %s", ErrBadBody, d.Message)
			}
			res.Issues = append(res.Issues, Issue{Code: d.Code, Path: d.Path, Message: d.Message})
		}
		return res, nil
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBadBody, err)
	}
	if body == nil {
		return Result{}, fmt.Errorf("%w: body must be a JSON object", ErrBadBody)
	}

	f, err := dynform.New(ctx, v.configs, v.opts...)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()
	if err := f.Patch(ctx, body); err != nil {
		return Result{}, err
	}
	if errs := f.Errors(); errs != nil {
		return Result{Errors: errs, Messages: f.Messages()}, nil
	}
	return Result{Value: f.Value()}, nil
}

// ctxKeyValue is the context key for the validated form value.
type ctxKeyValue struct{}

// ContextWithValue attaches a validated form value to ctx.
func ContextWithValue(ctx context.Context, v map[string]any) context.Context {
	return context.WithValue(ctx, ctxKeyValue{}, v)
}

// ValueFromContext retrieves the value stored by ContextWithValue.
func ValueFromContext(ctx context.Context) (map[string]any, bool) {
	v, ok := ctx.Value(ctxKeyValue{}).(map[string]any)
	return v, ok
}

// Status maps a check outcome to an HTTP status: 400 for unreadable bodies
// and body issues, 422 for validation errors, 200 otherwise.
func Status(res Result, err error) int {
	switch {
	case errors.Is(err, ErrBadBody), len(res.Issues) > 0:
		return http.StatusBadRequest
	case err != nil:
		return http.StatusInternalServerError
	case len(res.Errors) > 0:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusOK
	}
}

// ErrorPayload shapes a failed check for JSON responses.
func ErrorPayload(res Result, err error) map[string]any {
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	out := map[string]any{}
	if len(res.Issues) > 0 {
		out["issues"] = res.Issues
	}
	if len(res.Errors) > 0 {
		out["errors"] = res.Errors
		out["messages"] = res.Messages
	}
	return out
}

// ValidateJSON returns net/http middleware that checks the request body
// with v. Valid requests continue with the form value in their context;
// others get the error payload.
func ValidateJSON(v *Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := v.Read(r.Context(), r.Body)
			if code := Status(res, err); code != http.StatusOK {
				WriteJSON(w, code, ErrorPayload(res, err))
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithValue(r.Context(), res.Value)))
		})
	}
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
