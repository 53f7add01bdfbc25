package api_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/momentics/ackd/api"
)

func TestError_WrapAndContext(t *testing.T) {
	err := api.NewError(api.ErrCodeStartup, "open log file").
		WithContext("path", "/tmp/9000.txt").
		Wrap(api.ErrNotFound)

	if !errors.Is(err, api.ErrNotFound) {
		t.Error("cause not reachable through errors.Is")
	}
	var apiErr *api.Error
	if !errors.As(error(err), &apiErr) || apiErr.Code != api.ErrCodeStartup {
		t.Fatalf("errors.As failed: %v", err)
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "open log file: resource not found") || !strings.Contains(msg, "/tmp/9000.txt") {
		t.Errorf("Error() = %q", msg)
	}
}

func TestTagAndKindStrings(t *testing.T) {
	if s := api.ListenerTag.String(); s != "listener" {
		t.Errorf("listener tag = %q", s)
	}
	if s := (api.Tag{Slot: 3, Gen: 7}).String(); s != "3/7" {
		t.Errorf("tag = %q", s)
	}
	if api.OpTimeout.String() != "timeout" || api.OpKind(0).String() != "op(0)" {
		t.Error("unexpected OpKind strings")
	}
	if api.StatePendingAck.String() != "pending-ack" {
		t.Error("unexpected state string")
	}
}
