package shared

import (
	"encoding/json"
	"fmt"
	"time"
)

// MarshalJSON encodes v, indented with two spaces when pretty is set.
func MarshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// FormatDuration renders seconds as m:ss, or h:mm:ss for an hour and longer.
func FormatDuration(seconds float64) string {
	if seconds <= 0 {
		return "0:00"
	}
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatPercent renders progress in [0, 1] as a whole percentage.
func FormatPercent(progress float64) string {
	return fmt.Sprintf("%d%%", int(progress*100+0.5))
}
