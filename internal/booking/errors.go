package booking

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidRange          = errors.New("invalid date range")
	ErrRoomUnavailable       = errors.New("room is not available for the selected dates")
	ErrSessionCreationFailed = errors.New("failed to create checkout session")
	ErrInvalidTransition     = errors.New("invalid reservation transition")
	ErrInvalidInput          = errors.New("invalid input")
	ErrForbidden             = errors.New("forbidden")
	ErrUnauthenticated       = errors.New("authentication required")
	// ErrNotExpired: expire dipanggil sebelum window habis; tidak ada perubahan.
	ErrNotExpired = errors.New("reservation expiry window has not elapsed")
)

// Wire codes carried in error bodies as {"code": ...}.
const (
	CodeNotFound              = "NOT_FOUND"
	CodeInvalidRange          = "INVALID_RANGE"
	CodeInvalidInput          = "INVALID_INPUT"
	CodeRoomUnavailable       = "ROOM_UNAVAILABLE"
	CodeSessionCreationFailed = "SESSION_CREATION_FAILED"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeForbidden             = "FORBIDDEN"
	CodeUnauthenticated       = "UNAUTHORIZED"
	CodeInternal              = "INTERNAL"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrNotFound, CodeNotFound},
	{ErrInvalidRange, CodeInvalidRange},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrRoomUnavailable, CodeRoomUnavailable},
	{ErrSessionCreationFailed, CodeSessionCreationFailed},
	{ErrInvalidTransition, CodeInvalidTransition},
	{ErrForbidden, CodeForbidden},
	{ErrUnauthenticated, CodeUnauthenticated},
}

// Code returns the wire code for err, CodeInternal when none matches.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// ErrorForCode is the inverse of Code; unknown codes yield nil.
func ErrorForCode(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
