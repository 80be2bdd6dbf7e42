// Package config exposes typed, read-only access to the application settings.
package config

import (
	"io"
	"time"
)

// DurationReader converts integer settings into durations of a given unit.
type DurationReader interface {
	GetSecond(key string) time.Duration
	GetMinute(key string) time.Duration
	GetHour(key string) time.Duration
}

// NumberReader reads numeric settings.
type NumberReader interface {
	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetUint(key string) uint
	GetUint16(key string) uint16
	GetFloat64(key string) float64
}

// Config is the read side of the settings tree, addressed by dotted keys
// such as "modules.account.reset.code_ttl_seconds". Missing keys yield zero values.
type Config interface {
	io.Closer
	DurationReader
	NumberReader

	GetBool(key string) bool
	GetString(key string) string
	// GetBinary decodes a base64 value. Invalid input yields nil.
	GetBinary(key string) []byte
	// GetArray splits a comma separated value and drops blank entries.
	GetArray(key string) []string
	// GetMap parses "k1:v1,k2:v2" into a map.
	GetMap(key string) map[string]string
}
