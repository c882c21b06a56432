package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateMeetingID generates a unique meeting identifier
func GenerateMeetingID() string {
	return GenerateID("meeting")
}

// GenerateTrackID generates a unique local track identifier
func GenerateTrackID() string {
	return GenerateID("track")
}

// GenerateID generates a unique ID with the given prefix
func GenerateID(prefix string) string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%s", prefix, hex.EncodeToString(b))
}
