/*
File Name:  Errors.go
Package:    protocol

Error kinds for the codec. The codec is pure (no I/O, no global state);
every rejection is one of these sentinels so callers can discriminate
with errors.Is instead of parsing strings.
*/

package protocol

import "errors"

var (
	// ErrBadHeader is returned by DecodeHeader when the input is not
	// exactly HeaderSize bytes.
	ErrBadHeader = errors.New("protocol: bad frame header")

	// ErrOversizedPayload is returned by EncodeFrame when the payload
	// exceeds the configured maximum.
	ErrOversizedPayload = errors.New("protocol: oversized payload")

	// ErrBadHello is returned by DecodeHello when the input is not
	// exactly HelloSize bytes.
	ErrBadHello = errors.New("protocol: bad hello payload")
)
