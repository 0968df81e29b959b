package serverlink

import (
	"fmt"
	"time"
)

// ConnectionError carries a reason and whether the connection it came from
// should be treated as fatal (abandon the link) or transient (reconnect
// after the configured interval), the same "struct with retry metadata"
// shape the reference error type uses for HTTP rate limiting.
type ConnectionError struct {
	Reason     string
	Fatal      bool
	RetryAfter time.Duration
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("server link error: %s (fatal=%v retry_after=%s)", e.Reason, e.Fatal, e.RetryAfter)
}

// IsFatal reports whether the caller should give up instead of retrying,
// satisfying eventloop.FatalServerError.
func (e *ConnectionError) IsFatal() bool {
	return e.Fatal
}

// ErrProtocolViolation wraps a peer protocol fault: malformed JSON,
// unsupported compression, or an inbound message shape the client doesn't
// recognize badly enough to abort the connection.
type ErrProtocolViolation struct {
	Detail string
}

func (e *ErrProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation: %s", e.Detail)
}
