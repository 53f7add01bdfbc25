// File: internal/appendlog/appendlog.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared append-only output file. Appends are scheduled through the reactor
// as single write operations of exactly the received byte count.

package appendlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/momentics/ackd/api"
)

// Log is the single output sink shared by every connection.
type Log struct {
	f      *os.File
	path   string
	bytes  uint64
	writes uint64
}

// PathFor returns the log path derived from the listening port.
func PathFor(dir string, port int) string {
	return filepath.Join(dir, strconv.Itoa(port)+".txt")
}

// Open creates or truncates path for appending.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND|os.O_TRUNC, 0o700)
	if err != nil {
		return nil, api.NewError(api.ErrCodeStartup, "open log file").
			WithContext("path", path).Wrap(err)
	}
	return &Log{f: f, path: path}, nil
}

// AppendAsync schedules one write of msg. The payload is copied so the
// caller may reuse its buffer before the write completes.
func (l *Log) AppendAsync(sub api.Submitter, tag api.Tag, msg []byte) error {
	if l.f == nil {
		return api.ErrClosed
	}
	buf := make([]byte, len(msg))
	copy(buf, msg)
	if err := sub.Submit(api.Op{Kind: api.OpWrite, Fd: int(l.f.Fd()), Buf: buf, Tag: tag}); err != nil {
		return fmt.Errorf("append %d bytes: %w", len(msg), err)
	}
	return nil
}

// Done accounts a finished append.
func (l *Log) Done(n int) {
	if n > 0 {
		l.bytes += uint64(n)
		l.writes++
	}
}

// Stats returns completed writes and bytes.
func (l *Log) Stats() (writes, bytes uint64) {
	return l.writes, l.bytes
}

// Path returns the backing file path.
func (l *Log) Path() string { return l.path }

// Close syncs and releases the file; subsequent calls are no-ops.
func (l *Log) Close() error {
	if l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil
	serr := f.Sync()
	if err := f.Close(); err != nil {
		return fmt.Errorf("close log %s: %w", l.path, err)
	}
	return serr
}
