// File: internal/settings/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package settings loads and persists the INI settings file that sits next
// to the binary. The file remembers the last listening port so the server
// can be restarted without arguments.
package settings
