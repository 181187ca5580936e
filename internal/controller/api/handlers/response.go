package handlers

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// Every response carries a {success: bool} envelope: successful calls add a
// data payload or a message, failures add a flat error string. Clients
// (settings window, tray icon) branch on the flag, not the HTTP status.

// APIError is the envelope for failures. It implements huma.StatusError, so
// returning one from a handler serializes it directly as the response body.
type APIError struct {
	status  int
	Success bool   `json:"success"`
	Detail  string `json:"error"`
}

func (e *APIError) Error() string  { return e.Detail }
func (e *APIError) GetStatus() int { return e.status }

// InitErrors swaps huma's RFC 7807 problem responses for the envelope format,
// so request validation failures look the same as handler errors. Call once
// before registering operations.
func InitErrors() {
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		var b strings.Builder
		b.WriteString(msg)
		for i, err := range errs {
			if i == 0 {
				b.WriteString(": ")
			} else {
				b.WriteString("; ")
			}
			b.WriteString(err.Error())
		}
		return &APIError{status: status, Detail: b.String()}
	}
}

// DataBody wraps a payload in the success envelope.
type DataBody[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// DataOutput is the huma output type for payload-carrying operations.
type DataOutput[T any] struct {
	Body DataBody[T]
}

func OK[T any](data T) *DataOutput[T] {
	return &DataOutput[T]{Body: DataBody[T]{Success: true, Data: data}}
}

// MsgBody is the success envelope for operations with nothing to return
// beyond confirmation, such as cancellation.
type MsgBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MsgOutput is the huma output type for message-only operations.
type MsgOutput struct {
	Body MsgBody
}

func Msg(message string) *MsgOutput {
	return &MsgOutput{Body: MsgBody{Success: true, Message: message}}
}
