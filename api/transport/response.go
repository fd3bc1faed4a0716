package transport

import "github.com/fastygo/dailyquest/domain"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// CodeDegraded marks a health report with at least one unreachable dependency.
const CodeDegraded domain.ErrorCode = "DEGRADED"

// Envelope wraps every JSON body the engine writes. Error bodies carry a domain error code and
// a message safe to show to the caller.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

// NewSuccess wraps data; meta describes the listing window or the caller's budget.
func NewSuccess(data, meta interface{}) Envelope {
	return Envelope{Status: StatusSuccess, Data: data, Meta: meta}
}

// NewError wraps a failure; meta is reserved for diagnostics such as dependency status.
func NewError(code domain.ErrorCode, message string, meta interface{}) Envelope {
	return Envelope{Status: StatusError, Code: string(code), Error: message, Meta: meta}
}
