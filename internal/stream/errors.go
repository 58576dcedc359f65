package stream

import (
	"errors"

	"github.com/nupi-ai/chartfeed/internal/modes"
	"github.com/nupi-ai/chartfeed/internal/protocol"
)

var (
	// ErrUnknownMode is returned by Configure for names missing from the mode registry.
	ErrUnknownMode = modes.ErrUnknownMode
	// ErrInvalidChunkSize is returned by Configure for sizes the mode does not offer.
	ErrInvalidChunkSize = errors.New("stream: invalid chunk size")
	// ErrMalformedResponse marks inbound frames that were dropped because they
	// did not decode.
	ErrMalformedResponse = protocol.ErrMalformedResponse
	// ErrTransportClosedUnexpectedly is reported when the data source closes an
	// open session.
	ErrTransportClosedUnexpectedly = errors.New("stream: transport closed unexpectedly")
	// ErrConnectFailed is reported when a session never reached OPEN.
	ErrConnectFailed = errors.New("stream: connect failed")
	// ErrDisposed is returned by Configure after Dispose.
	ErrDisposed = errors.New("stream: controller disposed")
)
