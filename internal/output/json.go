package output

import (
	"encoding/json"
	"io"
)

// ErrorCode classifies a failed command for scripts reading JSON output.
type ErrorCode string

const (
	ErrGeneral    ErrorCode = "GENERAL_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrRemote     ErrorCode = "REMOTE_ERROR"
	ErrCanceled   ErrorCode = "CANCELED"
)

// Process exit codes. A backup that finished with some failed items still
// exits with ExitSuccess; the report carries the failures.
const (
	ExitSuccess    = 0
	ExitGeneral    = 1
	ExitNotFound   = 2
	ExitValidation = 3
	ExitRemote     = 4
	ExitCanceled   = 130
)

var exitCodes = map[ErrorCode]int{
	ErrGeneral:    ExitGeneral,
	ErrNotFound:   ExitNotFound,
	ErrValidation: ExitValidation,
	ErrRemote:     ExitRemote,
	ErrCanceled:   ExitCanceled,
}

// ExitCodeForError maps code to its exit code. Unknown codes exit with
// ExitGeneral.
func ExitCodeForError(code ErrorCode) int {
	if c, ok := exitCodes[code]; ok {
		return c
	}
	return ExitGeneral
}

type successEnvelope struct {
	OK      bool   `json:"ok"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

type errorEnvelope struct {
	OK       bool      `json:"ok"`
	Error    string    `json:"error"`
	Code     ErrorCode `json:"code"`
	ExitCode int       `json:"exit_code"`
}

func writeJSONSuccess(w io.Writer, data any, message string) {
	writeEnvelope(w, successEnvelope{OK: true, Data: data, Message: message})
}

func writeJSONError(w io.Writer, err error, code ErrorCode) {
	writeEnvelope(w, errorEnvelope{Error: err.Error(), Code: code, ExitCode: ExitCodeForError(code)})
}

// writeEnvelope writes v as one line of JSON. File names and wiki titles
// keep their <, > and & unescaped.
func writeEnvelope(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
