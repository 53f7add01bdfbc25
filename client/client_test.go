package client_test

import (
	"bufio"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/momentics/ackd/api"
	"github.com/momentics/ackd/client"
)

// ackServer acknowledges every read with a fixed line after delay.
func ackServer(t *testing.T, delay time.Duration) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, api.MaxMessageLen)
				for {
					if _, err := c.Read(buf); err != nil {
						return
					}
					time.Sleep(delay)
					if _, err := c.Write([]byte("1700000000 ACCEPTED\n")); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestSend_ParsesAck(t *testing.T) {
	addr := ackServer(t, 20*time.Millisecond)
	c, err := client.Dial(client.DefaultConfig(addr))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ack, err := c.Send([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if ack.Line != "1700000000 ACCEPTED" || ack.Timestamp.Unix() != 1700000000 {
		t.Errorf("ack = %+v", ack)
	}
	if ack.Latency < 20*time.Millisecond {
		t.Errorf("latency %v shorter than server delay", ack.Latency)
	}
}

func TestSend_RejectsOversized(t *testing.T) {
	addr := ackServer(t, 0)
	c, err := client.Dial(client.DefaultConfig(addr))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := c.Send(make([]byte, api.MaxMessageLen+1)); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := c.Send(nil); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty message, got %v", err)
	}
}

func TestReadAck_Malformed(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		bufio.NewReader(conn).ReadByte()
		conn.Write([]byte("nope\n"))
	}()

	c, err := client.Dial(client.DefaultConfig(ln.Addr().String()))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := c.Send([]byte("x")); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("expected malformed ack error, got %v", err)
	}
}

func TestProbe_Summary(t *testing.T) {
	addr := ackServer(t, 10*time.Millisecond)
	rep := client.Probe(context.Background(), client.DefaultConfig(addr), 8, []byte("ping"))
	if rep.OK != 8 || rep.Failed != 0 {
		t.Fatalf("ok=%d failed=%d", rep.OK, rep.Failed)
	}
	if rep.Min > rep.Median || rep.Median > rep.Max {
		t.Errorf("latency order broken: %v %v %v", rep.Min, rep.Median, rep.Max)
	}
}

func TestProbe_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := client.DefaultConfig(addr)
	cfg.DialTimeout = time.Second
	rep := client.Probe(context.Background(), cfg, 3, []byte("x"))
	if rep.Failed != 3 || rep.OK != 0 {
		t.Fatalf("ok=%d failed=%d", rep.OK, rep.Failed)
	}
}
