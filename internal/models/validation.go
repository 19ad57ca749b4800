package models

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	MaxURLLength   = 2000
	MaxTitleLength = 200
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_-]{3,20}$`)

const UsernameRuleMessage = "Username must be 3-20 characters and contain only letters, numbers, underscores, and hyphens"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("weburl", func(fl validator.FieldLevel) bool {
		return IsWebURL(fl.Field().String())
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidUsername(NormalizeUsername(fl.Field().String()))
	})
	return v
}

// NormalizeUsername folds a username to its stored form. Usernames compare
// case-insensitively.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidUsername reports whether an already normalized username is well formed.
func ValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// IsWebURL accepts absolute http and https URLs up to MaxURLLength.
func IsWebURL(s string) bool {
	if s == "" || len(s) > MaxURLLength {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// validateStruct runs the struct tags on v and flattens failures into
// field -> message.
func validateStruct(v interface{}) map[string]string {
	out := make(map[string]string)
	err := validate.Struct(v)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["_"] = "Invalid request"
		return out
	}
	for _, fe := range verrs {
		field := fieldPath(fe)
		if _, exists := out[field]; !exists {
			out[field] = fieldMessage(fe)
		}
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace so nested
// errors read like "projects[0].title".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map {
			return fmt.Sprintf("must have at most %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "weburl":
		return fmt.Sprintf("must be an http or https URL of at most %d characters", MaxURLLength)
	case "email":
		return "must be a valid email address"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "username":
		return UsernameRuleMessage
	default:
		return "is invalid"
	}
}

func trimmed(s string) string { return strings.TrimSpace(s) }
