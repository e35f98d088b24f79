// Package validator schema-checks structured outputs before they are trusted downstream.
package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/hrygo/nova/plugin/ai/errlog"
)

// FieldError describes one failed constraint.
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// ValidationError is returned in a failed Result.
type ValidationError struct {
	Source string       `json:"source"`
	Fields []FieldError `json:"fields,omitempty"`
	Cause  error        `json:"-"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 && e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Source, e.Cause)
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Param != "" {
			parts = append(parts, fmt.Sprintf("%s(%s=%s)", f.Field, f.Tag, f.Param))
		} else {
			parts = append(parts, fmt.Sprintf("%s(%s)", f.Field, f.Tag))
		}
	}
	return fmt.Sprintf("%s: invalid fields %s", e.Source, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// Result carries either a validated value or the validation error.
type Result[T any] struct {
	Value T
	Err   *ValidationError
}

// OK reports whether validation passed.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Validator wraps go-playground/validator and reports failures to the error handler.
type Validator struct {
	validate *validator.Validate
	reporter errlog.Reporter
}

// New creates a Validator. A nil reporter discards failure reports.
func New(reporter errlog.Reporter) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return jsonName(field.Tag.Get("json"), field.Name)
	})
	return &Validator{validate: v, reporter: errlog.OrNop(reporter)}
}

// Struct validates value against its struct tags without reporting.
func (v *Validator) Struct(value any) error {
	return v.validate.Struct(value)
}

// Structured validates value and reports a schema mismatch under source.
// It never panics on invalid input; a failed Result carries the field errors.
func Structured[T any](ctx context.Context, v *Validator, value T, source string) Result[T] {
	return check(ctx, v, value, source, errlog.TypeValidation)
}

// ParseStructured decodes a JSON payload into T and validates it.
// Replies wrapped in markdown code fences are accepted.
func ParseStructured[T any](ctx context.Context, v *Validator, raw string, source string) Result[T] {
	var value T
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &value); err != nil {
		verr := &ValidationError{Source: source, Cause: errors.Wrap(err, "decode")}
		v.reporter.HandleError(ctx, errlog.TypeAICall, verr.Error(), map[string]any{"source": source}, false)
		return Result[T]{Value: value, Err: verr}
	}
	return check(ctx, v, value, source, errlog.TypeAICall)
}

func check[T any](ctx context.Context, v *Validator, value T, source string, errType errlog.ErrorType) Result[T] {
	err := v.validate.Struct(value)
	if err == nil {
		return Result[T]{Value: value}
	}

	verr := &ValidationError{Source: source, Cause: err}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			verr.Fields = append(verr.Fields, FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()})
		}
	}
	v.reporter.HandleError(ctx, errType, verr.Error(), map[string]any{"source": source, "fields": len(verr.Fields)}, false)
	return Result[T]{Value: value, Err: verr}
}

// ExtractJSON returns the outermost JSON object in s, stripping code fences and prose.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return strings.TrimSpace(s)
}

// PredictionSchema is the minimal shape a prediction must satisfy before caching.
type PredictionSchema struct {
	VenueID    string   `json:"venueId" validate:"required"`
	Prediction string   `json:"prediction" validate:"required"`
	Confidence *float64 `json:"confidence" validate:"required,gte=0,lte=1"`
}

// NotificationSchema is the minimal shape a notification must satisfy before it is queued.
type NotificationSchema struct {
	ID        string    `json:"id" validate:"required"`
	Type      string    `json:"type" validate:"required,oneof=friend_proximity optimal_timing venue_suggestion social_opportunity"`
	Priority  string    `json:"priority" validate:"required,oneof=low medium high urgent"`
	Title     string    `json:"title" validate:"required,max=120"`
	Message   string    `json:"message" validate:"required,max=500"`
	ExpiresAt time.Time `json:"expiresAt" validate:"required"`
}

// ValidatePrediction checks a prediction against PredictionSchema.
func (v *Validator) ValidatePrediction(ctx context.Context, p PredictionSchema) Result[PredictionSchema] {
	return Structured(ctx, v, p, "prediction")
}

// ValidateNotification checks a notification against NotificationSchema.
func (v *Validator) ValidateNotification(ctx context.Context, n NotificationSchema) Result[NotificationSchema] {
	return Structured(ctx, v, n, "notification")
}
