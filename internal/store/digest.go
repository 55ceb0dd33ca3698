package store

import (
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// DeviceDigest returns the stored form of a device identifier. Raw device ids
// never reach the database.
func DeviceDigest(deviceID string) string {
	sum := sha3.Sum256([]byte(deviceID))
	return hex.EncodeToString(sum[:])
}

// deviceMatches compares a presented device id with a stored digest in constant time
func deviceMatches(deviceID, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(DeviceDigest(deviceID)), []byte(digest)) == 1
}
