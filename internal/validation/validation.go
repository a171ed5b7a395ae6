package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/AnshRaj112/safezone-backend/internal/apperror"
)

var (
	validate *validator.Validate
	trans    ut.Translator
	once     sync.Once
)

// Init builds the shared validator. Field names in messages are the JSON
// names the client sent.
func Init() {
	once.Do(func() {
		english := en.New()
		uni := ut.New(english, english)
		trans, _ = uni.GetTranslator("en")

		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = enTranslations.RegisterDefaultTranslations(validate, trans)
	})
}

// Struct validates v and returns an *apperror.Error listing every violated
// constraint, or nil.
func Struct(v any) error {
	Init()
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Validation([]apperror.FieldError{{Field: "body", Message: err.Error()}})
	}
	details := make([]apperror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, apperror.FieldError{Field: fe.Field(), Message: fe.Translate(trans)})
	}
	return apperror.Validation(details)
}
