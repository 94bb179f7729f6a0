package gotrue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNoSession is returned by calls that need a signed-in user.
	ErrNoSession = errors.New("gotrue: no active session")
	// ErrMalformedResponse reports a 2xx response that could not be decoded.
	ErrMalformedResponse = errors.New("gotrue: malformed response")
)

// APIError is a non-2xx response. GoTrue has used both the OAuth style
// {error, error_description} and {error_code, msg} bodies; both are accepted.
// Err is the library error it was decoded from.
type APIError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if msg == "" {
		return fmt.Sprintf("gotrue: status %d", e.Status)
	}
	return fmt.Sprintf("gotrue: status %d: %s", e.Status, msg)
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e *APIError) Unwrap() error { return e.Err }

// statusPrefix starts every non-2xx error the auth library returns, followed
// by the status code and, when readable, ": " and the raw body.
const statusPrefix = "response status code "

// splitStatusError recovers the status and body from a library status error.
func splitStatusError(err error) (int, []byte, bool) {
	rest, ok := strings.CutPrefix(err.Error(), statusPrefix)
	if !ok {
		return 0, nil, false
	}
	code, body, _ := strings.Cut(rest, ": ")
	status, convErr := strconv.Atoi(code)
	if convErr != nil {
		return 0, nil, false
	}
	return status, []byte(body), true
}

// classify maps library errors onto *APIError and ErrMalformedResponse.
// Transport and context errors pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	status, body, ok := splitStatusError(err)
	if !ok {
		return err
	}
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	apiErr := eb.toAPIError(status)
	apiErr.Err = err
	return apiErr
}

func (b errorBody) toAPIError(status int) *APIError {
	e := &APIError{Status: status}
	switch {
	case b.ErrorCode != "":
		e.Code = b.ErrorCode
	case b.Error != "":
		e.Code = b.Error
	}
	for _, m := range []string{b.Msg, b.ErrorDescription, b.Message} {
		if strings.TrimSpace(m) != "" {
			e.Message = m
			break
		}
	}
	return e
}

func isCredentialRejection(e *APIError) bool {
	if e.Status != 400 {
		return false
	}
	switch e.Code {
	case "invalid_grant", "invalid_credentials":
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "invalid login credentials")
}

func isCodeRejection(e *APIError) bool {
	switch e.Status {
	case 400, 401, 403, 404:
		return true
	}
	return e.Code == "otp_expired" || e.Code == "otp_invalid"
}

func isSessionRejection(e *APIError) bool {
	return e.Status == 400 || e.Status == 401 || e.Status == 403
}
