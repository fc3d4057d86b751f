package tls

import "fmt"

// Level returns the alert level a description is conventionally sent at;
// close_notify and user_canceled are warnings, everything else is fatal.
func (a AlertDescription) Level() AlertLevel {
	switch a {
	case AlertCloseNotify, AlertUserCanceled:
		return AlertLevelWarning
	}
	return AlertLevelFatal
}

// encodeAlert builds the 2-byte alert record body.
func encodeAlert(desc AlertDescription) [2]byte {
	return [2]byte{byte(desc.Level()), byte(desc)}
}

// decodeAlert parses a 2-byte alert record body.
func decodeAlert(data []byte) (AlertLevel, AlertDescription, error) {
	if len(data) != 2 {
		return 0, 0, errDecodeError("alert record must be exactly 2 bytes, got %d", len(data))
	}
	return AlertLevel(data[0]), AlertDescription(data[1]), nil
}

func (l AlertLevel) String() string {
	switch l {
	case AlertLevelWarning:
		return "warning"
	case AlertLevelFatal:
		return "fatal"
	}
	return fmt.Sprintf("alert_level(%d)", l)
}
