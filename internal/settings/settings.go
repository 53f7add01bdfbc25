// File: internal/settings/settings.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package settings

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/ini.v1"

	"github.com/momentics/ackd/api"
	"github.com/momentics/ackd/server"
)

// PortEnvVar overrides the persisted port.
const PortEnvVar = "ACKD_PORT"

// Suffix is appended to the executable path to form the default file name.
const Suffix = ".conf"

// GeneralConf holds top-level keys.
type GeneralConf struct {
	Port int `ini:"port"`
}

// ServerConf holds optional tuning keys. Zero values keep the defaults.
type ServerConf struct {
	Host           string        `ini:"host"`
	LogDir         string        `ini:"log_dir"`
	MaxConnections int           `ini:"max_connections"`
	AckDelay       time.Duration `ini:"ack_delay"`
	QueueDepth     int           `ini:"queue_depth"`
}

// LogConf configures diagnostics.
type LogConf struct {
	Level string `ini:"level"`
}

// Settings is the parsed settings file.
type Settings struct {
	General GeneralConf `ini:"General"`
	Server  ServerConf  `ini:"server"`
	Log     LogConf     `ini:"log"`
}

// DefaultPath returns "<executable>.conf".
func DefaultPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "ackd" + Suffix
	}
	return exe + Suffix
}

// Load reads path and applies the ACKD_PORT override. A missing file yields
// empty settings wrapped with api.ErrNotFound so callers can still use the
// environment.
func Load(path string) (*Settings, error) {
	s := &Settings{}
	var loadErr error
	f, err := ini.Load(path)
	switch {
	case err == nil:
		if err := f.MapTo(s); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		loadErr = fmt.Errorf("settings %s: %w", path, api.ErrNotFound)
	default:
		return nil, fmt.Errorf("load settings %s: %w", path, err)
	}
	overrideFromEnvInt(&s.General.Port, PortEnvVar)
	return s, loadErr
}

// SavePort writes port into path, keeping every other key intact.
func SavePort(path string, port int) error {
	f, err := ini.LooseLoad(path)
	if err != nil {
		return fmt.Errorf("load settings %s: %w", path, err)
	}
	f.Section("General").Key("port").SetValue(strconv.Itoa(port))
	if err := f.SaveTo(path); err != nil {
		return fmt.Errorf("save settings %s: %w", path, err)
	}
	return nil
}

// Save writes s to path, replacing the file.
func Save(path string, s *Settings) error {
	f := ini.Empty()
	if err := f.ReflectFrom(s); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := f.SaveTo(path); err != nil {
		return fmt.Errorf("save settings %s: %w", path, err)
	}
	return nil
}

// Apply copies the non-zero tuning keys into cfg.
func (s *Settings) Apply(cfg *server.Config) {
	if s.General.Port > 0 {
		cfg.Port = s.General.Port
	}
	if s.Server.Host != "" {
		cfg.Host = s.Server.Host
	}
	if s.Server.LogDir != "" {
		cfg.LogDir = s.Server.LogDir
	}
	if s.Server.MaxConnections > 0 {
		cfg.MaxConnections = s.Server.MaxConnections
	}
	if s.Server.AckDelay > 0 {
		cfg.AckDelay = s.Server.AckDelay
	}
	if s.Server.QueueDepth > 0 {
		cfg.QueueDepth = s.Server.QueueDepth
	}
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}
