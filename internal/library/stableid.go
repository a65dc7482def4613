package library

import (
	"crypto/sha1"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// IDLength is the number of hex characters in a video id.
const IDLength = 16

// StableID derives the video id from its source and relative path. The
// result is the first 16 hex characters of sha1("<sourceID>/<relPath>")
// with relPath normalized to forward slashes, so ids survive restarts
// and are identical across platforms.
func StableID(sourceID, relPath string) string {
	sum := sha1.Sum([]byte(sourceID + "/" + filepath.ToSlash(relPath)))
	return hex.EncodeToString(sum[:])[:IDLength]
}

// ValidID reports whether s has the shape of a video id.
func ValidID(s string) bool {
	if len(s) != IDLength {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}
