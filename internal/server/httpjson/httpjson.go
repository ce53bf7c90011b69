// Package httpjson holds the JSON request and response helpers shared by the HTTP handlers.
package httpjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// ErrBadRequest wraps every body decoding failure.
var ErrBadRequest = errors.New("bad request")

// ErrorBody is the error response shape.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// Write encodes v as the JSON response body with status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes an ErrorBody.
func Error(w http.ResponseWriter, status int, detail string) {
	Write(w, status, ErrorBody{Detail: detail})
}

// Decode reads one JSON object from r's body into v, rejecting unknown fields and trailing data.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrBadRequest)
	}
	return nil
}
