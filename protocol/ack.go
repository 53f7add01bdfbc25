// File: protocol/ack.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Acknowledgment wire format.

package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/momentics/ackd/api"
)

// AckMarker is the literal carried by every acknowledgment.
const AckMarker = "ACCEPTED"

// FormatAck renders "<unix_seconds> ACCEPTED\n".
func FormatAck(t time.Time) []byte {
	b := make([]byte, 0, 32)
	b = strconv.AppendInt(b, t.Unix(), 10)
	b = append(b, ' ')
	b = append(b, AckMarker...)
	return append(b, '\n')
}

// ParseAck extracts the timestamp from one acknowledgment line. The
// trailing newline is optional.
func ParseAck(line []byte) (time.Time, error) {
	s := strings.TrimSuffix(string(line), "\n")
	ts, marker, ok := strings.Cut(s, " ")
	if !ok || marker != AckMarker {
		return time.Time{}, fmt.Errorf("malformed ack %q: %w", s, api.ErrInvalidArgument)
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed ack timestamp %q: %w", ts, api.ErrInvalidArgument)
	}
	return time.Unix(sec, 0), nil
}
