// Package util contains small byte and string helpers shared by the parsers.
package util

import (
	"bytes"
	"strconv"
	"strings"
)

// CloneSlice clones slice with cloneSize.
// This function will use src length as the clone size if cloneSize is 0.
func CloneSlice[T any](src []T, cloneSize int) []T {
	if cloneSize == 0 {
		cloneSize = len(src)
	}
	clone := make([]T, cloneSize)
	copy(clone, src)

	return clone
}

// CString returns the text of b up to the first NUL byte, with surrounding spaces trimmed.
func CString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}

	return strings.TrimSpace(string(b))
}

// JoinInts formats values in base 10 joined by sep.
func JoinInts[T ~int | ~uint8 | ~int32 | ~int64](values []T, sep string) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(strconv.FormatInt(int64(v), 10))
	}

	return sb.String()
}
