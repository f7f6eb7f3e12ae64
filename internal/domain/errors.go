package domain

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotMember         = errors.New("user not member of room")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrRoomNotJoined     = errors.New("room not joined")
	ErrStoreUnavailable  = errors.New("message store unavailable")
	ErrBrokerUnavailable = errors.New("broker unavailable")
	ErrMalformedEvent    = errors.New("malformed event")
	ErrConnectionClosed  = errors.New("connection closed")
)

// Error codes reported to clients.
const (
	CodeInvalidInput     = "invalid_input"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeRateLimited      = "rate_limited"
	CodeRoomNotJoined    = "room_not_joined"
	CodeStoreUnavailable = "store_unavailable"
	CodeClosed           = "connection_closed"
	CodeInternal         = "internal"
)

// Code classifies err into one of the client facing error codes.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMalformedEvent):
		return CodeInvalidInput
	case errors.Is(err, ErrNotMember):
		return CodeForbidden
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrRoomNotJoined):
		return CodeRoomNotJoined
	case errors.Is(err, ErrStoreUnavailable):
		return CodeStoreUnavailable
	case errors.Is(err, ErrConnectionClosed):
		return CodeClosed
	default:
		return CodeInternal
	}
}

// PublicMessage returns the text that may be shown to the client for err.
// Internal failures are never echoed back verbatim.
func PublicMessage(err error) string {
	switch Code(err) {
	case CodeInternal:
		return "internal server error"
	case CodeStoreUnavailable:
		return "message could not be saved, try again"
	default:
		return err.Error()
	}
}
