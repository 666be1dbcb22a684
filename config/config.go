package config

import (
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/zhur/errors"
	"github.com/wippyai/zhur/transport"
)

// Config holds everything the zhur binaries read from the environment.
type Config struct {
	CoreEndpoint    transport.Endpoint
	ControlEndpoint transport.Endpoint
	AppStore        transport.Endpoint
	KVEndpoint      transport.Endpoint
	GateAddr        string

	MaxExecutors     int
	MaxOutstanding   int
	MemoryLimitPages uint32
	EntryOp          string

	DialTimeout    time.Duration
	RequestTimeout time.Duration

	AppsDir  string
	KVPath   string
	QUICCert string
	QUICKey  string

	LogLevel  string
	LogFormat string
}

// Transport returns the dial and TLS options shared by every client and listener.
func (c Config) Transport() transport.Options {
	return transport.Options{
		DialTimeout:    c.DialTimeout,
		RequestTimeout: c.RequestTimeout,
		CertFile:       c.QUICCert,
		KeyFile:        c.QUICKey,
	}
}

type setting struct {
	env   string
	def   string
	apply func(c *Config, v string) error
}

var settings = []setting{
	{"ZHUR_CORE_ENDPOINT", "unix:///tmp/zhur-core.sock", endpoint(func(c *Config) *transport.Endpoint { return &c.CoreEndpoint })},
	{"ZHUR_CONTROL_ENDPOINT", "unix:///tmp/zhur-core-control.sock", endpoint(func(c *Config) *transport.Endpoint { return &c.ControlEndpoint })},
	{"ZHUR_APST_ENDPOINT", "unix:///tmp/zhur-apst.sock", endpoint(func(c *Config) *transport.Endpoint { return &c.AppStore })},
	{"ZHUR_KV_ENDPOINT", "unix:///tmp/zhur-kv.sock", endpoint(func(c *Config) *transport.Endpoint { return &c.KVEndpoint })},
	{"ZHUR_GATE_ADDR", "127.0.0.1:8080", str(func(c *Config) *string { return &c.GateAddr })},
	{"ZHUR_MAX_EXECUTORS", "3", positive(func(c *Config) *int { return &c.MaxExecutors })},
	{"ZHUR_MAX_OUTSTANDING", "1024", positive(func(c *Config) *int { return &c.MaxOutstanding })},
	{"ZHUR_MEMORY_LIMIT_PAGES", "0", func(c *Config, v string) error {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return err
		}
		c.MemoryLimitPages = uint32(n)
		return nil
	}},
	{"ZHUR_ENTRY_OP", "handle", str(func(c *Config) *string { return &c.EntryOp })},
	{"ZHUR_DIAL_TIMEOUT", "5s", duration(func(c *Config) *time.Duration { return &c.DialTimeout })},
	{"ZHUR_REQUEST_TIMEOUT", "30s", duration(func(c *Config) *time.Duration { return &c.RequestTimeout })},
	{"ZHUR_APPS_DIR", "./apps", str(func(c *Config) *string { return &c.AppsDir })},
	{"ZHUR_KV_PATH", "/tmp/zhur-kv.sqlite3", str(func(c *Config) *string { return &c.KVPath })},
	{"ZHUR_QUIC_CERT", "", str(func(c *Config) *string { return &c.QUICCert })},
	{"ZHUR_QUIC_KEY", "", str(func(c *Config) *string { return &c.QUICKey })},
	{"ZHUR_LOG_LEVEL", "info", str(func(c *Config) *string { return &c.LogLevel })},
	{"ZHUR_LOG_FORMAT", "console", str(func(c *Config) *string { return &c.LogFormat })},
}

// Default returns the configuration with every variable unset.
func Default() Config {
	var c Config
	for _, s := range settings {
		if err := s.apply(&c, s.def); err != nil {
			panic(err)
		}
	}
	return c
}

// FromEnv reads the ZHUR_* variables. Unset variables fall back to their
// default with a warning; malformed ones are an error.
func FromEnv(log *zap.Logger) (Config, error) {
	return load(os.LookupEnv, log)
}

func load(lookup func(string) (string, bool), log *zap.Logger) (Config, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var c Config
	for _, s := range settings {
		v, ok := lookup(s.env)
		if !ok {
			log.Warn("environment variable not set, using default",
				zap.String("var", s.env),
				zap.String("default", s.def))
			v = s.def
		}
		if err := s.apply(&c, v); err != nil {
			return Config{}, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Cause(err).
				Detail("%s=%q", s.env, v).
				Build()
		}
	}
	return c, nil
}

func str(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func endpoint(field func(*Config) *transport.Endpoint) func(*Config, string) error {
	return func(c *Config, v string) error {
		ep, err := transport.ParseEndpoint(v)
		if err != nil {
			return err
		}
		*field(c) = ep
		return nil
	}
}

func positive(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		if n <= 0 {
			return errors.InvalidInput(errors.PhaseConfig, "must be positive")
		}
		*field(c) = n
		return nil
	}
}

func duration(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}
