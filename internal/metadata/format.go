package metadata

import (
	"fmt"
	"strconv"
)

// FormatDuration decomposes a duration expressed in TimeBase units in
// to 'HH:MM:SS.F'. The returned bool reports whether the value should
// be written, which is only the case when the hour, minute and
// second components are ALL non-zero.
func FormatDuration(units int64) (string, bool) {
	secs := units / TimeBase
	frac := units % TimeBase
	mins := secs / 60
	secs %= 60
	hours := mins / 60
	mins %= 60

	formatted := fmt.Sprintf("%02d:%02d:%02d.%01d", hours, mins, secs, (10*frac)/TimeBase)
	return formatted, hours > 0 && mins > 0 && secs > 0
}

// FormatBitrate converts bits/second to truncated kb/s.
func FormatBitrate(bitRate int64) (string, bool) {
	if bitRate <= 0 {
		return "", false
	}

	return strconv.FormatInt(bitRate/1000, 10), true
}

func FormatResolution(width, height int) (string, bool) {
	if width <= 0 || height <= 0 {
		return "", false
	}

	return fmt.Sprintf("%dx%d", width, height), true
}

func formatPositive(v int) (string, bool) {
	if v <= 0 {
		return "", false
	}

	return strconv.Itoa(v), true
}
