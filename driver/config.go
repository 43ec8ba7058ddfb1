// Package driver implements the conductor: the single-threaded control
// plane that owns publications, subscriptions, images, and clients, and
// the ambient stack (logging, configuration, error accounting) that
// supports it (spec.md §4.C, §6, §7).
package driver

import "time"

// LoggerBackend selects which third-party logging library backs the
// default driver.Logger (spec.md §10 "Logging").
type LoggerBackend int

const (
	// LoggerLogrus wires github.com/sirupsen/logrus, the teacher's own
	// default backend.
	LoggerLogrus LoggerBackend = iota
	// LoggerHCLog wires github.com/hashicorp/go-hclog, useful when this
	// driver is embedded alongside other Hashicorp-style tooling.
	LoggerHCLog
)

// Config is every knob spec.md §6 names, plus the ambient ones (aeron
// directory, logger backend, file permissions) this expansion adds. It is
// populated with functional options the way the teacher's
// configuration.go builds a *BaseConfiguration.
type Config struct {
	// AeronDir is the aeron directory setting (spec.md §6 "Log file path").
	// The conductor's default log-buffer allocation is in-process and does
	// not create files under it.
	AeronDir string

	// TermLength is the per-partition byte size; must be a power of two
	// in [64KiB, 1GiB] (spec.md §3, enforced by buffer.ValidateTermLength).
	TermLength int32

	// WindowLength is the IPC publication flow-control window
	// (`ipc_publication_term_window_length`).
	WindowLength int64

	// UnblockTimeout is `publication_unblock_timeout_ns`.
	UnblockTimeout time.Duration

	// ClientLivenessTimeout is `client_liveness_timeout_ns`.
	ClientLivenessTimeout time.Duration

	// UntetheredWindowLimitTimeout is `untethered_window_limit_timeout_ns`.
	UntetheredWindowLimitTimeout time.Duration

	// UntetheredRestingTimeout is `untethered_resting_timeout_ns`.
	UntetheredRestingTimeout time.Duration

	// TimerInterval is `timer_interval_ns`, the conductor sweep cadence.
	TimerInterval time.Duration

	// FilePageSize is `file_page_size`.
	FilePageSize int32

	// ReservedSessionIDLow/High is the
	// `publication_reserved_session_id_{low,high}` range the session id
	// allocator skips.
	ReservedSessionIDLow  int32
	ReservedSessionIDHigh int32

	// LoggerBackend selects the default Logger implementation
	// cmd/aeron-driver wires up when none is supplied explicitly.
	LoggerBackend LoggerBackend

	// MetadataFilePermissions is a file mode setting. No code path reads
	// it; buffer.CreateMapped always creates files with mode 0644.
	MetadataFilePermissions uint32
}

// Option mutates a Config being built by NewConfig.
type Option func(*Config)

// NewConfig builds a Config with the defaults the real driver ships,
// then applies opts in order (spec.md §6 table; defaults follow the
// values the C driver's aeron_driver_context documents).
func NewConfig(opts ...Option) *Config {
	c := &Config{
		AeronDir:                     defaultAeronDir(),
		TermLength:                   16 * 1024 * 1024,
		WindowLength:                 2 * 1024 * 1024,
		UnblockTimeout:               15 * time.Second,
		ClientLivenessTimeout:        10 * time.Second,
		UntetheredWindowLimitTimeout: 5 * time.Second,
		UntetheredRestingTimeout:     10 * time.Second,
		TimerInterval:                time.Second,
		FilePageSize:                 4096,
		ReservedSessionIDLow:         -1,
		ReservedSessionIDHigh:        1000,
		LoggerBackend:                LoggerLogrus,
		MetadataFilePermissions:      0644,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithAeronDir(dir string) Option { return func(c *Config) { c.AeronDir = dir } }

func WithTermLength(length int32) Option { return func(c *Config) { c.TermLength = length } }

func WithWindowLength(length int64) Option { return func(c *Config) { c.WindowLength = length } }

func WithUnblockTimeout(d time.Duration) Option {
	return func(c *Config) { c.UnblockTimeout = d }
}

func WithClientLivenessTimeout(d time.Duration) Option {
	return func(c *Config) { c.ClientLivenessTimeout = d }
}

func WithUntetheredWindowLimitTimeout(d time.Duration) Option {
	return func(c *Config) { c.UntetheredWindowLimitTimeout = d }
}

func WithUntetheredRestingTimeout(d time.Duration) Option {
	return func(c *Config) { c.UntetheredRestingTimeout = d }
}

func WithTimerInterval(d time.Duration) Option { return func(c *Config) { c.TimerInterval = d } }

func WithFilePageSize(size int32) Option { return func(c *Config) { c.FilePageSize = size } }

func WithReservedSessionIDRange(low, high int32) Option {
	return func(c *Config) {
		c.ReservedSessionIDLow = low
		c.ReservedSessionIDHigh = high
	}
}

func WithLoggerBackend(backend LoggerBackend) Option {
	return func(c *Config) { c.LoggerBackend = backend }
}

func WithMetadataFilePermissions(mode uint32) Option {
	return func(c *Config) { c.MetadataFilePermissions = mode }
}

func defaultAeronDir() string {
	return "/dev/shm/aeron-driver"
}
