package requester

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// APIError is a failure reported by the Graph API, either through a non-2xx
// status or through an error object in a 2xx body.
type APIError struct {
	Status  int
	Message string
	Type    string
	Code    int
	Body    []byte
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("graph api error (status %d, %s %d): %s", e.Status, e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("graph api error (status %d): %s", e.Status, e.Message)
}

// graphError covers the two error shapes the providers use: the Graph API
// object `{"error":{"message":...}}` and the flat legacy OAuth shape
// `{"error_type":...,"error_message":...}`.
type graphError struct {
	Error        json.RawMessage `json:"error"`
	ErrorType    string          `json:"error_type"`
	ErrorMessage string          `json:"error_message"`
	Code         int             `json:"code"`
}

type graphErrorObject struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// Err returns the provider error carried by the response, or nil.
func (r *Response) Err() *APIError {
	var ge graphError
	parsed := json.Unmarshal(r.Body, &ge) == nil

	if parsed {
		if e := ge.apiError(r.StatusCode); e != nil {
			e.Body = r.Body
			return e
		}
	}
	if r.IsSuccess() {
		return nil
	}

	message := strings.TrimSpace(string(r.Body))
	if message == "" {
		message = http.StatusText(r.StatusCode)
	}
	return &APIError{Status: r.StatusCode, Message: message, Body: r.Body}
}

func (ge *graphError) apiError(status int) *APIError {
	raw := strings.TrimSpace(string(ge.Error))
	switch {
	case raw != "" && raw != "null":
		var obj graphErrorObject
		if err := json.Unmarshal(ge.Error, &obj); err == nil {
			if obj.Message == "" {
				obj.Message = "unknown provider error"
			}
			return &APIError{Status: status, Message: obj.Message, Type: obj.Type, Code: obj.Code}
		}
		var s string
		if err := json.Unmarshal(ge.Error, &s); err == nil && s != "" {
			return &APIError{Status: status, Message: s, Type: ge.ErrorType, Code: ge.Code}
		}
		return &APIError{Status: status, Message: raw}
	case ge.ErrorType != "" || ge.ErrorMessage != "":
		message := ge.ErrorMessage
		if message == "" {
			message = ge.ErrorType
		}
		return &APIError{Status: status, Message: message, Type: ge.ErrorType, Code: ge.Code}
	}
	return nil
}
