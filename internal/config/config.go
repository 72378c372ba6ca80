// Package config loads the YAML configuration file of the wasmrepl tools.
package config

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	yaml "gopkg.in/yaml.v2"

	"github.com/xirelogy/go-wasmrepl"
)

type Memory struct {
	InitialPages uint32 `yaml:"initial_pages"`
	MaxPages     uint32 `yaml:"max_pages"`
}

type Session struct {
	MaxGlobals int `yaml:"max_globals"`
	MaxDepth   int `yaml:"max_depth"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Transcript struct {
	// Path of the SQLite database. Empty disables recording.
	Path string `yaml:"path"`
}

type Server struct {
	Addr string `yaml:"addr"`
	// MaxSessions bounds concurrent websocket connections. Zero means
	// unlimited.
	MaxSessions int `yaml:"max_sessions"`
}

// Config is the whole configuration file.
type Config struct {
	Memory     Memory     `yaml:"memory"`
	Session    Session    `yaml:"session"`
	Log        Log        `yaml:"log"`
	Transcript Transcript `yaml:"transcript"`
	Server     Server     `yaml:"server"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	def := wasmrepl.DefaultConfig()
	return Config{
		Memory: Memory{
			InitialPages: def.InitialPages,
			MaxPages:     def.MaxPages,
		},
		Session: Session{
			MaxGlobals: def.MaxGlobals,
			MaxDepth:   def.MaxDepth,
		},
		Log: Log{
			Level: "info",
		},
		Server: Server{
			Addr: "127.0.0.1:8765",
		},
	}
}

// Load reads a configuration file. Keys missing from the file keep their
// default value.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "open config")
	}
	defer f.Close()
	cfg, err := Decode(f)
	if err != nil {
		return Config{}, errors.Wrapf(err, "%s", path)
	}
	return cfg, nil
}

// Decode parses YAML from r on top of the defaults. Unknown keys are
// rejected.
func Decode(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, errors.WithStack(err)
	}
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that have no sensible fallback.
func (c Config) Validate() error {
	if err := c.SessionConfig(nil, nil).Validate(); err != nil {
		return errors.Wrap(err, "session")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log level")
	}
	if c.Server.MaxSessions < 0 {
		return errors.New("server: max_sessions must not be negative")
	}
	return nil
}

// SessionConfig converts the file settings into a session configuration.
func (c Config) SessionConfig(logger *zap.Logger, output io.Writer) wasmrepl.Config {
	return wasmrepl.Config{
		InitialPages: c.Memory.InitialPages,
		MaxPages:     c.Memory.MaxPages,
		MaxGlobals:   c.Session.MaxGlobals,
		MaxDepth:     c.Session.MaxDepth,
		Logger:       logger,
		Output:       output,
	}
}

// Logger builds the process logger described by the log section.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	var zc zap.Config
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.Encoding = "console"
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return logger, nil
}
