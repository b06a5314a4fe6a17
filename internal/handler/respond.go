package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/bandcoach/internal/llm"
	"github.com/pavelanni/bandcoach/internal/model"
	"github.com/pavelanni/bandcoach/internal/store"
)

const maxBodyBytes = 1 << 20

var (
	errBadRequest   = errors.New("bad request")
	errUnauthorized = errors.New("unauthorized")
	errForbidden    = errors.New("forbidden")
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func respondMessage(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, errorResponse{Error: message})
}

// respondError writes err with the status statusFromError picks. Server-side
// failures are logged and reported without detail.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFromError(err)
	if code >= http.StatusInternalServerError && code != http.StatusBadGateway {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondMessage(w, code, "internal error")
		return
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		respondMessage(w, code, validationMessage(verrs))
		return
	}
	respondMessage(w, code, err.Error())
}

// statusFromError maps domain errors to HTTP status codes.
func statusFromError(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verrs), errors.Is(err, errBadRequest), errors.Is(err, model.ErrInvalidPrompt):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, llm.ErrMalformedOutput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, llm.ErrOracleUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", errBadRequest)
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("halfband", func(fl validator.FieldLevel) bool {
		b := fl.Field().Float()
		return b >= 0 && b <= 9 && math.Mod(b*2, 1) == 0
	})
	return v
}

func validationMessage(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		var m string
		switch fe.Tag() {
		case "required":
			m = fe.Field() + " is required"
		case "email":
			m = fe.Field() + " must be a valid email address"
		case "min":
			m = fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		case "gte", "lte":
			m = fmt.Sprintf("%s must be between allowed bounds (%s %s)", fe.Field(), fe.Tag(), fe.Param())
		case "halfband":
			m = fe.Field() + " must be a band between 0 and 9 in steps of 0.5"
		case "gtfield":
			m = fe.Field() + " must be higher than current_band"
		case "oneof":
			m = fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
		default:
			m = fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
		}
		msgs = append(msgs, m)
	}
	return strings.Join(msgs, "; ")
}
