// File: client/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package client is a blocking client for the acknowledgment protocol. It
// is used by the probe command and by integration tests.
package client
