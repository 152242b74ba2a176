package sqlutil

import (
	"time"
)

// Helper functions for columns stored without native bool or time types

// BoolToInt converts a Go bool to a 0/1 integer column
func BoolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// IntToBool converts a 0/1 integer column back to a Go bool
func IntToBool(i int) bool {
	return i != 0
}

// ToUnixMilli converts a time to epoch milliseconds
func ToUnixMilli(t time.Time) int64 {
	return t.UnixMilli()
}

// FromUnixMilli converts epoch milliseconds to a UTC time
func FromUnixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
