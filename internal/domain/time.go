package domain

import (
	"encoding/json"
	"time"
)

// naiveLayout matches ISO-8601 timestamps without a zone offset, with or
// without fractional seconds, as written by the legacy deployment. Values are
// interpreted as UTC.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// FlexTime is a time.Time that unmarshals both RFC 3339 timestamps and the
// zone-less ISO form found in data files produced by earlier versions. It
// always marshals as RFC 3339.
type FlexTime struct {
	time.Time
}

// ParseTime accepts an RFC 3339 or zone-less ISO-8601 timestamp string.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(naiveLayout, s, time.UTC)
}

func (f *FlexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		f.Time = time.Time{}
		return nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return err
	}
	f.Time = t
	return nil
}

func (f FlexTime) MarshalJSON() ([]byte, error) {
	return f.Time.MarshalJSON()
}
