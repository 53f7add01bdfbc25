//go:build !linux
// +build !linux

// File: server/listener_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "github.com/momentics/ackd/api"

func listen(host string, port, backlog int) (int, int, error) {
	return -1, 0, api.ErrNotSupported
}

func closeFd(fd int) {}
