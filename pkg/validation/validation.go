package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// APIKeyRegex validates the room-service API key format
	APIKeyRegex = regexp.MustCompile(`^[a-zA-Z0-9]{64}$`)

	// APIUserRegex validates the room-service API user name format
	APIUserRegex = regexp.MustCompile(`^[a-zA-Z0-9]{6,}$`)

	// RoomNameRegex validates meeting identifiers
	RoomNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateAPIKey validates the API key without leaking its value in errors.
func ValidateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("api key is required")
	}
	if !APIKeyRegex.MatchString(key) {
		return fmt.Errorf("api key must be exactly 64 alphanumeric characters")
	}
	return nil
}

// ValidateAPIUserName validates the API user name.
func ValidateAPIUserName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("api user name is required")
	}
	if !APIUserRegex.MatchString(name) {
		return fmt.Errorf("api user name must be at least 6 alphanumeric characters")
	}
	return nil
}

// ValidateRoomName validates a meeting identifier.
func ValidateRoomName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("room name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("room name is too long (max 64 characters)")
	}
	if !RoomNameRegex.MatchString(name) {
		return fmt.Errorf("room name may contain only letters, digits, underscore and dash")
	}
	return nil
}

// ValidateDisplayName validates a participant display name.
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("display name is required")
	}
	if utf8.RuneCountInString(name) > 50 {
		return fmt.Errorf("display name is too long (max 50 characters)")
	}
	return nil
}
