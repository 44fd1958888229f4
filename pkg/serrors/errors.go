package serrors

import "fmt"

// Error is a coded error shared across packages so callers can branch on
// stable codes instead of message text.
type Error struct {
	Code    string
	Message string
	DocURL  string
}

func NewError(code, message, docURL string) *Error {
	return &Error{Code: code, Message: message, DocURL: docURL}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithDetail returns a copy with extra context appended to the message.
// The code is preserved so errors.Is against the base error keeps working.
func (e *Error) WithDetail(format string, args ...any) *Error {
	return &Error{
		Code:    e.Code,
		Message: fmt.Sprintf("%s: %s", e.Message, fmt.Sprintf(format, args...)),
		DocURL:  e.DocURL,
	}
}

// Is matches on code, so wrapped and detailed copies compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}
