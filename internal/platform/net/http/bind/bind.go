// Package bind decodes and validates request payloads
package bind

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"reflect"
	"strings"
	"sync"

	perr "exoseek/internal/platform/errors"
	"exoseek/internal/platform/logger"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// MaxBody caps a JSON request body
const MaxBody = 1 << 20

type validation struct {
	v     *validator.Validate
	trans ut.Translator
}

var get = sync.OnceValue(func() validation {
	enLoc := en.New()
	trans, _ := ut.New(enLoc, enLoc).GetTranslator("en")

	v := validator.New(validator.WithRequiredStructEnabled())
	// messages name the json field the client sent
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = en_translations.RegisterDefaultTranslations(v, trans)
	_ = v.RegisterValidation("finite", finite)

	for tag, text := range map[string]string{
		"min":    "{0} must be at least {1}",
		"max":    "{0} must be at most {1}",
		"finite": "{0} must be a finite number",
	} {
		_ = v.RegisterTranslation(tag, trans,
			func(t ut.Translator) error { return t.Add(tag, text, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				msg, _ := t.T(tag, fe.Field(), fe.Param())
				return msg
			},
		)
	}
	return validation{v: v, trans: trans}
})

// finite rejects NaN and infinities on float fields
func finite(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Float32, reflect.Float64:
		return !math.IsNaN(f.Float()) && !math.IsInf(f.Float(), 0)
	}
	return true
}

// ParseJSON decodes one JSON object into T, rejecting unknown fields and trailing data, then validates it
func ParseJSON[T any](r *http.Request) (T, error) {
	var zero, dst T
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dst); err != nil {
		if errors.Is(err, io.EOF) {
			return zero, perr.JSONErrf("empty body")
		}
		return zero, perr.JSONErrf("invalid JSON: %v", err)
	}
	if dec.More() {
		return zero, perr.JSONErrf("unexpected trailing data")
	}
	if err := Validate(dst); err != nil {
		return zero, err
	}
	return dst, nil
}

// Validate runs struct tags on v; the first failing field becomes a validation error
func Validate(v any) error {
	err := get().v.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return perr.New(perr.ErrorCodeValidation, verrs[0].Translate(get().trans))
	}
	logger.Named("bind").Error().Err(err).Msg("validator misuse")
	return perr.Wrap(err, perr.ErrorCodeValidation, "validation error")
}
