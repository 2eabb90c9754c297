package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Errors returned when inspecting responses.
var (
	// ErrFieldNotFound is returned when a JSON field is missing from a body.
	ErrFieldNotFound = errors.New("client: field not found in response")
)

// Response is a fully read HTTP response.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Body is the raw response body.
	Body []byte

	// Header holds the response headers.
	Header http.Header

	// Latency is the wall-clock time the request took.
	Latency time.Duration
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("client: decoding response body: %w", err)
	}
	return nil
}

// JSONField extracts a top-level field from a JSON object body and returns
// it as a string. Numeric values are formatted without a trailing exponent,
// so an id of 42 comes back as "42".
func (r *Response) JSONField(name string) (string, error) {
	var obj map[string]any
	if err := json.Unmarshal(r.Body, &obj); err != nil {
		return "", fmt.Errorf("client: decoding response body: %w", err)
	}

	value, ok := obj[name]
	if !ok || value == nil {
		return "", fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}

	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}
