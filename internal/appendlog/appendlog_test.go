package appendlog_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/momentics/ackd/api"
	"github.com/momentics/ackd/internal/appendlog"
)

type recordingSubmitter struct {
	ops []api.Op
	err error
}

func (s *recordingSubmitter) Submit(op api.Op) error {
	if s.err != nil {
		return s.err
	}
	s.ops = append(s.ops, op)
	return nil
}

func TestPathFor(t *testing.T) {
	if got := appendlog.PathFor("logs", 8080); got != filepath.Join("logs", "8080.txt") {
		t.Errorf("PathFor = %q", got)
	}
}

func TestOpen_Truncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "9000.txt")
	os.WriteFile(path, []byte("stale"), 0o600)

	l, err := appendlog.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()
	info, _ := os.Stat(path)
	if info.Size() != 0 {
		t.Errorf("file not truncated, size %d", info.Size())
	}
}

func TestOpen_Failure(t *testing.T) {
	_, err := appendlog.Open(filepath.Join(t.TempDir(), "missing", "x.txt"))
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Code != api.ErrCodeStartup {
		t.Fatalf("expected startup error, got %v", err)
	}
}

func TestAppendAsync_SubmitsExactCopy(t *testing.T) {
	l, err := appendlog.Open(filepath.Join(t.TempDir(), "1.txt"))
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	sub := &recordingSubmitter{}
	msg := []byte("hello")
	tag := api.Tag{Slot: 2, Gen: 4}
	if err := l.AppendAsync(sub, tag, msg); err != nil {
		t.Fatal(err)
	}
	msg[0] = 'j'

	if len(sub.ops) != 1 {
		t.Fatalf("ops = %d", len(sub.ops))
	}
	op := sub.ops[0]
	if op.Kind != api.OpWrite || op.Tag != tag || string(op.Buf) != "hello" {
		t.Errorf("unexpected op %+v", op)
	}
}

func TestAppendAsync_Errors(t *testing.T) {
	l, err := appendlog.Open(filepath.Join(t.TempDir(), "1.txt"))
	if err != nil {
		t.Fatal(err)
	}
	sub := &recordingSubmitter{err: api.ErrQueueFull}
	if err := l.AppendAsync(sub, api.Tag{}, []byte("x")); !errors.Is(err, api.ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := l.AppendAsync(&recordingSubmitter{}, api.Tag{}, []byte("x")); !errors.Is(err, api.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestStats(t *testing.T) {
	l, err := appendlog.Open(filepath.Join(t.TempDir(), "1.txt"))
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	l.Done(5)
	l.Done(-1)
	l.Done(3)
	w, b := l.Stats()
	if w != 2 || b != 8 {
		t.Errorf("stats = %d writes, %d bytes", w, b)
	}
}
