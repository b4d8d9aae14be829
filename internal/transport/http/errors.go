package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"reflect"

	"livequiz-service/internal/domain"
)

type errorBody struct {
	Message string              `json:"message"`
	Errors  []domain.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

// writeError maps service errors onto the HTTP error convention. Unexpected
// errors are logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "validation failed", Errors: verr.Fields})
	case domain.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorBody{Message: rootMessage(err)})
	case domain.IsConflict(err):
		writeJSON(w, http.StatusConflict, errorBody{Message: rootMessage(err)})
	case errors.Is(err, domain.ErrPinExhausted):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Message: err.Error()})
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "internal server error"})
	}
}

// rootMessage reports the sentinel's text so clients can match on it.
func rootMessage(err error) string {
	for _, sentinel := range []error{
		domain.ErrQuizNotFound, domain.ErrQuestionNotFound, domain.ErrSessionNotFound, domain.ErrPlayerNotFound,
		domain.ErrInvalidTransition, domain.ErrSessionNotJoinable, domain.ErrSessionNotActive,
		domain.ErrNoPlayers, domain.ErrNoQuestions, domain.ErrQuestionNotCurrent, domain.ErrAlreadyAnswered,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// decodeJSON reads a JSON body into v. An empty body is accepted when
// optional is set. Type mismatches are reported against the offending field.
func decodeJSON(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		if optional {
			return nil
		}
		return domain.NewValidationError("body", "is required")
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return domain.NewValidationError(typeErr.Field, "must be "+jsonKind(typeErr.Type))
	}
	return domain.NewValidationError("body", "must be valid JSON")
}

func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Slice, reflect.Array:
		return "an array"
	}
	return "an object"
}
