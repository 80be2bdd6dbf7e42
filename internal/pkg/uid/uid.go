// Package uid generates identifiers: numeric row ids, opaque string tokens
// and UUIDs.
package uid

// NumberID generates sortable 64-bit ids.
type NumberID interface {
	Generate() int64
}

// StringID generates string ids or tokens.
type StringID interface {
	Generate() string
}
