package config

import (
	"io"
	"time"
)

// DurationConfig defines helpers for retrieving duration configuration values
// stored as plain integers.
type DurationConfig interface {
	// GetMillis retrieves the value associated with the given key as milliseconds.
	GetMillis(key string) time.Duration

	// GetSecond retrieves the value associated with the given key as seconds.
	GetSecond(key string) time.Duration
}

// Config defines a set of methods for retrieving configuration values of various types.
// Missing keys and values that cannot be converted yield the zero value.
type Config interface {
	io.Closer
	DurationConfig

	GetBool(key string) bool
	GetInt(key string) int
	GetInt64(key string) int64
	GetUint64(key string) uint64
	GetFloat64(key string) float64
	GetString(key string) string

	// GetArray retrieves the value associated with the given key as a slice of strings.
	// The value is stored with format <element1>,<element2>,...
	GetArray(key string) []string

	// GetLocation retrieves the value associated with the given key as an IANA zone.
	// An empty or unknown zone name yields time.Local.
	GetLocation(key string) *time.Location
}
