package tls

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error pairs a Go error with the alert description a handshake failure at
// this point in the protocol must send before the connection closes. It
// generalizes the teacher's decodeErrorf/illegalParameterf/internalErrorf
// trio into one type parameterized on the alert, since the full set of
// alert descriptions this library can raise is much larger than the
// teacher's TLS 1.3-only three.
type Error struct {
	Alert AlertDescription
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tls: %s: %v", e.Alert, e.cause)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

func newAlertError(alert AlertDescription, format string, args ...interface{}) *Error {
	return &Error{Alert: alert, cause: errors.Errorf(format, args...)}
}

func wrapAlertError(alert AlertDescription, cause error, context string) *Error {
	return &Error{Alert: alert, cause: errors.Wrap(cause, context)}
}

func errDecodeError(format string, args ...interface{}) error {
	return newAlertError(AlertDecodeError, format, args...)
}

func errIllegalParameter(format string, args ...interface{}) error {
	return newAlertError(AlertIllegalParameter, format, args...)
}

func errInternalError(format string, args ...interface{}) error {
	return newAlertError(AlertInternalError, format, args...)
}

func errUnexpectedMessage(format string, args ...interface{}) error {
	return newAlertError(AlertUnexpectedMessage, format, args...)
}

func errHandshakeFailure(format string, args ...interface{}) error {
	return newAlertError(AlertHandshakeFailure, format, args...)
}

func errBadRecordMAC(format string, args ...interface{}) error {
	return newAlertError(AlertBadRecordMAC, format, args...)
}

func errDecryptError(format string, args ...interface{}) error {
	return newAlertError(AlertDecryptError, format, args...)
}

func errProtocolVersion(format string, args ...interface{}) error {
	return newAlertError(AlertProtocolVersion, format, args...)
}

func errInsufficientSecurity(format string, args ...interface{}) error {
	return newAlertError(AlertInsufficientSecurity, format, args...)
}

func errCertificateExpired(format string, args ...interface{}) error {
	return newAlertError(AlertCertificateExpired, format, args...)
}

func errBadCertificate(format string, args ...interface{}) error {
	return newAlertError(AlertBadCertificate, format, args...)
}

func errMissingExtension(format string, args ...interface{}) error {
	return newAlertError(AlertMissingExtension, format, args...)
}

func errNoApplicationProtocol(format string, args ...interface{}) error {
	return newAlertError(AlertNoApplicationProtocol, format, args...)
}
