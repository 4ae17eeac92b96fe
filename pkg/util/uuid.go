package util

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/google/uuid"
)

// Checksum is the hex md5 of value, used to spot duplicate uploads
func Checksum(value []byte) string {
	sum := md5.Sum(value)
	return hex.EncodeToString(sum[:])
}

// NewFileID returns a random identity for an imported file
func NewFileID() string {
	return uuid.NewString()
}

// ContentID derives a stable UUID from file content, so the same bytes always
// get the same identity
func ContentID(value []byte) string {
	sum := md5.Sum(value)
	id, err := uuid.FromBytes(sum[:])
	if err != nil {
		return ""
	}
	return id.String()
}
