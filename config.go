package zipfsm

import "github.com/sirupsen/logrus"

// Config holds the limits and diagnostics hooks an FSM is constructed with.
// The FSMs themselves never log (they are sans-I/O and side-effect free by
// design); the logger is only used by the drivers in this package, such as
// BlockingArchive, for diagnostics.
type Config struct {
	logger                     logrus.FieldLogger
	maxCentralDirectoryRecords uint64
	initialReadChunk           int
}

// Option configures a Config, following the functional-options idiom used
// elsewhere in this corpus for component configuration.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		logger:                     logrus.StandardLogger(),
		maxCentralDirectoryRecords: 1 << 20,
		initialReadChunk:           32 * 1024,
	}
}

// WithLogger overrides the logger drivers use for diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Config) { c.logger = l }
}

// WithMaxCentralDirectoryRecords caps how many central directory records
// ArchiveFSM will parse, protecting a driver from an archive that declares
// an implausibly large entry count.
func WithMaxCentralDirectoryRecords(n uint64) Option {
	return func(c *Config) { c.maxCentralDirectoryRecords = n }
}

// WithInitialReadChunk sets the chunk size stored in Config. ArchiveFSM and
// EntryFSM do not read this value: ArchiveFSM sizes its buffer from the
// bytes each parse step needs, and EntryFSM starts from a fixed
// initialEntryBufferSize buffer.
func WithInitialReadChunk(n int) Option {
	return func(c *Config) { c.initialReadChunk = n }
}
