// internal/logger/config.go
package logger

import (
	"io"
	"os"
)

type Config struct {
	LogFile     string // empty disables the JSON file sink
	MaxSize     int    // megabytes
	MaxAge      int    // days
	MaxBackups  int
	Compress    bool
	Development bool
	Console     io.Writer
}

// DefaultConfig logs to stderr only, keeping stdout for rendered tables.
func DefaultConfig() *Config {
	return &Config{
		MaxSize:    100,
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   true,
		Console:    os.Stderr,
	}
}
