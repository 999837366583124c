package domain

import "fmt"

// Reply is the message sent back to the extension.
// Build it through Success, Failure or Info so every reply is exactly one variant.
type Reply struct {
	Cmd     string    `json:"cmd"`
	Code    *int      `json:"code,omitempty"`
	Content string    `json:"content,omitempty"`
	Error   string    `json:"error,omitempty"`
	Version string    `json:"version,omitempty"`
	Files   *[]string `json:"files,omitempty"` // Pointer so an empty listing still serializes
	IsDir   *bool     `json:"isDir,omitempty"`
	Sep     string    `json:"sep,omitempty"`
}

// ErrorCmd tags replies to requests that could not be routed to a handler.
const ErrorCmd = "error"

// Success returns a code 0 reply carrying content.
func Success(cmd, content string) Reply {
	code := 0
	return Reply{Cmd: cmd, Code: &code, Content: content}
}

// Failure returns an error reply. Code should be negative unless the command
// mirrors an exit status.
func Failure(cmd string, code int, err error) Reply {
	r := Reply{Cmd: cmd, Code: &code}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Failuref returns an error reply with a formatted, user-facing message.
func Failuref(cmd string, code int, format string, args ...any) Reply {
	return Reply{Cmd: cmd, Code: &code, Error: fmt.Sprintf(format, args...)}
}

// Unroutable returns the reply for a request that reached no handler.
func Unroutable(msg string) Reply {
	return Reply{Cmd: ErrorCmd, Error: msg}
}

// Info returns a reply without a status code.
func Info(cmd string) Reply {
	return Reply{Cmd: cmd}
}

// OK reports whether the reply is a success.
func (r Reply) OK() bool {
	return r.Error == "" && (r.Code == nil || *r.Code == 0)
}

// StatusCode returns the reply code, or 0 when none is set.
func (r Reply) StatusCode() int {
	if r.Code == nil {
		return 0
	}
	return *r.Code
}
