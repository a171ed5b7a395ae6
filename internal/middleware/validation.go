package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/AnshRaj112/safezone-backend/internal/apperror"
	"github.com/AnshRaj112/safezone-backend/internal/validation"
)

const maxBodyBytes = 1 << 20

type bodyKey struct{}

// ValidateBody decodes the JSON body into T and validates it. Failures
// short-circuit with 400 before the handler runs.
func ValidateBody[T any]() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body T
			dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err := dec.Decode(&body); err != nil {
				WriteError(w, r, decodeError(err))
				return
			}
			if err := validation.Struct(&body); err != nil {
				WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), bodyKey{}, &body)))
		})
	}
}

// BodyFrom returns the body validated by ValidateBody[T].
func BodyFrom[T any](ctx context.Context) *T {
	b, _ := ctx.Value(bodyKey{}).(*T)
	return b
}

func decodeError(err error) *apperror.Error {
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return apperror.Validation([]apperror.FieldError{{Field: "body", Message: "request body is required"}})
	case errors.As(err, &typeErr):
		return apperror.Validation([]apperror.FieldError{{Field: typeErr.Field, Message: typeErr.Field + " must be of type " + typeErr.Type.String()}})
	case errors.As(err, &maxErr):
		return apperror.Validation([]apperror.FieldError{{Field: "body", Message: "request body is too large"}})
	default:
		return apperror.Validation([]apperror.FieldError{{Field: "body", Message: "malformed JSON"}})
	}
}
