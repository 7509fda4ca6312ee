// Package inputval checks the shape of HTTP inputs (query parameters, path
// segments, small request bodies) using waffle/pantry/validate.
//
// Domain rules live in the content store; this package only rejects input
// that could never name a page, section or language, before any storage
// call is made.
//
// Example:
//
//	type translateQuery struct {
//	    Lang    string `json:"lang" validate:"required,langcode" label:"Language"`
//	    Refresh string `json:"refresh" validate:"oneof=true false" label:"Refresh"`
//	}
//
//	if res := inputval.Validate(q); res.HasErrors() {
//	    jsonutil.WriteError(w, res.Err("Translate"))
//	    return
//	}
package inputval

import (
	"errors"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/dalemusser/stratacms/internal/app/system/apperr"
	"github.com/dalemusser/stratacms/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/validate"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Result lists the fields that failed, in struct order.
type Result struct {
	Errors []FieldError
}

// FieldError is one failed field. Field is the json name.
type FieldError struct {
	Field   string
	Label   string
	Message string
}

func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// Fields maps json field names to messages, the shape apperr carries.
func (r *Result) Fields() map[string]string {
	fields := make(map[string]string, len(r.Errors))
	for _, e := range r.Errors {
		fields[e.Field] = e.Message
	}
	return fields
}

func (r *Result) String() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, " ")
}

// Err converts the result to an apperr validation error, or nil.
func (r *Result) Err(op string) error {
	if !r.HasErrors() {
		return nil
	}
	return &apperr.Error{Kind: apperr.ErrValidation, Op: op, Fields: r.Fields()}
}

var (
	customValidator *validate.Validator
	validatorOnce   sync.Once
)

// optional wraps a string predicate so the empty string passes; pair with
// "required" for mandatory fields.
func optional(fn func(string) bool) func(any) bool {
	return func(value any) bool {
		s, ok := value.(string)
		if !ok {
			return false
		}
		return s == "" || fn(s)
	}
}

func getValidator() *validate.Validator {
	validatorOnce.Do(func() {
		customValidator = validate.New(validate.WithStopOnFirstError())
		customValidator.RegisterRuleFunc("langcode", optional(IsValidLanguage), "langcode")
		customValidator.RegisterRuleFunc("slug", optional(models.IsValidSlug), "slug")
		customValidator.RegisterRuleFunc("httpurl", optional(IsValidHTTPURL), "httpurl")
		customValidator.RegisterRuleFunc("objectid", optional(IsValidObjectID), "objectid")
	})
	return customValidator
}

// Validate validates a struct and returns a Result with user-friendly errors.
// Field names in the result come from json tags; labels from label tags.
//
// Custom rules registered by this package (empty strings pass):
//   - langcode: a language code such as en, es or pt-br
//   - slug: lowercase letters, digits and single hyphens
//   - httpurl: an http:// or https:// URL
//   - objectid: a MongoDB ObjectID hex string
func Validate(s any) *Result {
	result := &Result{}

	err := getValidator().Struct(s)
	if err == nil {
		return result
	}

	labels := labelsFor(s)
	var errs validate.Errors
	if errors.As(err, &errs) {
		for _, e := range errs {
			label := labels[e.Field]
			if label == "" {
				label = e.Field
			}
			result.Errors = append(result.Errors, FieldError{
				Field:   e.Field,
				Label:   label,
				Message: formatMessage(label, e.Rule, e.Param),
			})
		}
	}
	return result
}

var labelCache sync.Map // reflect.Type -> map[string]string

// labelsFor maps json field names to label tags for a struct type.
func labelsFor(s any) map[string]string {
	t := reflect.TypeOf(s)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	if cached, ok := labelCache.Load(t); ok {
		return cached.(map[string]string)
	}

	labels := make(map[string]string)
	for _, f := range reflect.VisibleFields(t) {
		label := f.Tag.Get("label")
		if label == "" {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			name = f.Name
		}
		labels[name] = label
	}
	labelCache.Store(t, labels)
	return labels
}

func formatMessage(label, rule, param string) string {
	switch rule {
	case "required":
		return label + " is required."
	case "oneof", "enum":
		return label + " must be one of: " + strings.ReplaceAll(param, " ", ", ") + "."
	case "min":
		return label + " must be at least " + param + " characters."
	case "max":
		return label + " must be at most " + param + " characters."
	case "langcode":
		return label + " must be a language code such as en or pt-br."
	case "slug":
		return label + " must contain only lowercase letters, digits and single hyphens."
	case "httpurl":
		return label + " must be a valid URL starting with http:// or https://."
	case "objectid":
		return label + " is not a valid ID."
	default:
		return label + " is invalid."
	}
}

// IsValidLanguage reports whether s, after normalization, is a language code.
func IsValidLanguage(s string) bool {
	return models.IsValidLanguage(models.NormalizeLanguage(s))
}

// IsValidHTTPURL checks if the given string is a valid http:// or https:// URL.
func IsValidHTTPURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsValidObjectID checks if the given string is a valid MongoDB ObjectID hex.
func IsValidObjectID(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}
