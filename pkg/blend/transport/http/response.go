// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/blendvc/blendvc/pkg/blend/repo"
)

// ResponseWriter shadows http.ResponseWriter to track the status code and
// byte count written, for request logging.
type ResponseWriter struct {
	http.ResponseWriter
	written    int64
	statusCode int
}

func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (w *ResponseWriter) Write(data []byte) (int, error) {
	n, err := w.ResponseWriter.Write(data)
	w.written += int64(n)
	return n, err
}

func (w *ResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *ResponseWriter) StatusCode() int { return w.statusCode }
func (w *ResponseWriter) Written() int64  { return w.written }

type errorBody struct {
	Message string `json:"message"`
}

// renderError maps the repo package's spec.md §7 error classes onto HTTP
// status codes: Recoverable is a client-correctable condition (409),
// Consistency and Fundamental are server-side faults (500), Parse/IO
// failures are bad input (400).
func renderError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	var malformed *malformedRequest
	switch {
	case errors.As(err, &malformed):
		code = http.StatusBadRequest
	case repo.IsConflict(err):
		code = http.StatusConflict
	case repo.IsRecoverable(err):
		code = http.StatusConflict
	case repo.IsParseIO(err):
		code = http.StatusBadRequest
	case repo.IsConsistency(err), repo.IsFundamental(err):
		code = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorBody{Message: err.Error()})
}
