package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/id"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	id_translations "github.com/go-playground/validator/v10/translations/id"
)

// uni holds the English and Indonesian translators for validation errors.
var uni *ut.UniversalTranslator

// Setup registers the validator with English and Indonesian translations on
// Gin's binding engine. Call once during application startup.
func Setup() {
	v, ok := binding.Validator.Engine().(*govalidator.Validate)
	if !ok {
		return
	}

	// Use JSON tag name for field names in error messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	idLocale := id.New()
	uni = ut.New(idLocale, idLocale, en.New())

	idTrans, _ := uni.GetTranslator("id")
	_ = id_translations.RegisterDefaultTranslations(v, idTrans)
	enTrans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, enTrans)
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name → human-readable error message in the first supported locale.
// If the error is not a validation error, it returns a single-key map with "detail".
func TranslateErrors(err error, locales ...string) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		trans := translator(locales)
		for _, fe := range ve {
			if trans == nil {
				fields[fe.Field()] = fe.Error()
				continue
			}
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = err.Error()
	return fields
}

func translator(locales []string) ut.Translator {
	if uni == nil {
		return nil
	}
	trans, _ := uni.FindTranslator(locales...)
	return trans
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err, acceptLocales(c)...)
	}
	return nil
}

// Struct validates a value decoded outside Gin, such as a WebSocket message.
func Struct(v interface{}, locales ...string) map[string]string {
	if err := binding.Validator.ValidateStruct(v); err != nil {
		return TranslateErrors(err, locales...)
	}
	return nil
}

func acceptLocales(c *gin.Context) []string {
	var out []string
	for _, part := range strings.Split(c.GetHeader("Accept-Language"), ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" {
			continue
		}
		out = append(out, strings.ToLower(strings.SplitN(tag, "-", 2)[0]))
	}
	return out
}
