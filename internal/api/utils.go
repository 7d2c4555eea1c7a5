package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/FACorreiaa/go-itinerary-rag/internal/types"
)

// ErrorResponse writes a standard JSON error response including request ID.
func ErrorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	WriteJSONResponse(w, r, status, types.Response{
		Success:   false,
		Error:     message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// WriteJSONResponse encodes the data to JSON and writes the response header and body.
func WriteJSONResponse(w http.ResponseWriter, r *http.Request, status int, data any) {
	// If data is nil and status indicates no content, just write header
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}

	// Marshal payload
	js, err := json.Marshal(data)
	if err != nil {
		// Log the internal error
		reqID := middleware.GetReqID(r.Context())
		slog.ErrorContext(r.Context(), "Failed to marshal JSON response",
			slog.Any("error", err),
			slog.String("request_id", reqID),
		)
		// Send a generic server error response to the client
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Set headers *before* writing status or body
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status) // Write status code
	_, err = w.Write(js)  // Write JSON body
	if err != nil {
		// Log write error, client already received status code
		reqID := middleware.GetReqID(r.Context())
		slog.ErrorContext(r.Context(), "Failed to write response body",
			slog.Any("error", err),
			slog.String("request_id", reqID),
		)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush() // Ensure data is sent immediately
	}
}

// maxRequestBodyBytes bounds chat bodies, which carry the whole history.
const maxRequestBodyBytes = 1 << 20

// DecodeJSONBody decodes exactly one JSON value into dst. Problems with the
// client's body wrap types.ErrInvalidRequest; anything else is a server fault.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var (
			syntaxErr     *json.SyntaxError
			typeErr       *json.UnmarshalTypeError
			maxBytesErr   *http.MaxBytesError
			invalidTarget *json.InvalidUnmarshalError
		)
		switch {
		case errors.As(err, &invalidTarget):
			return fmt.Errorf("decode target: %w", err)
		case errors.As(err, &syntaxErr):
			return invalidBody("malformed JSON at offset %d", syntaxErr.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return invalidBody("malformed JSON")
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return invalidBody("field %q must be %s", typeErr.Field, typeErr.Type)
		case errors.As(err, &typeErr):
			return invalidBody("wrong JSON type at offset %d", typeErr.Offset)
		case errors.Is(err, io.EOF):
			return invalidBody("empty body")
		case errors.As(err, &maxBytesErr):
			return invalidBody("body larger than %d bytes", maxBytesErr.Limit)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return invalidBody("unknown field %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
		default:
			return fmt.Errorf("%w: %w", types.ErrInvalidRequest, err)
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return invalidBody("body must hold a single JSON value")
	}
	return nil
}

func invalidBody(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrInvalidRequest, fmt.Sprintf(format, args...))
}
