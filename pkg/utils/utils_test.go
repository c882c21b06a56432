package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateIDIsPrefixedAndUnique(t *testing.T) {
	a := GenerateMeetingID()
	b := GenerateMeetingID()

	assert.True(t, strings.HasPrefix(a, "meeting-"))
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(GenerateTrackID(), "track-"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  "))
	assert.Equal(t, "hithere", SanitizeString("hi\x00\x1bthere"))
	assert.Equal(t, "line1\nline2", SanitizeString("line1\nline2"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "long st...", TruncateString("long string here", 10))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
	assert.Equal(t, "", TruncateString("abc", 0))
}

func TestMaskSensitive(t *testing.T) {
	assert.Equal(t, "*****ser", MaskSensitive("produser", 3))
	assert.Equal(t, "***", MaskSensitive("abc", 5))
	assert.Equal(t, "******", MaskSensitive("secret", 0))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "2.5s", FormatDuration(2500*time.Millisecond))
	assert.Equal(t, "2m30s", FormatDuration(150*time.Second))
	assert.Equal(t, "1h30m", FormatDuration(90*time.Minute))
}

func TestIsExpired(t *testing.T) {
	assert.True(t, IsExpired(time.Now().Add(-time.Minute), time.Second))
	assert.False(t, IsExpired(time.Now(), time.Minute))
}
