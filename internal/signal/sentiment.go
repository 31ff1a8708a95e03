package signal

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Sentiment is an optional external sentiment score, such as the fear and greed index.
// The zero value is unset and stays distinguishable from a score of 0.
type Sentiment struct {
	value float64
	set   bool
}

// SentimentOf returns a set sentiment score
func SentimentOf(v float64) Sentiment {
	return Sentiment{value: v, set: true}
}

// Unset returns the "not provided" sentiment
func Unset() Sentiment {
	return Sentiment{}
}

// Value returns the score and whether it was provided
func (s Sentiment) Value() (float64, bool) {
	return s.value, s.set
}

// IsSet reports whether a score was provided
func (s Sentiment) IsSet() bool {
	return s.set
}

func (s Sentiment) String() string {
	if !s.set {
		return "not provided"
	}
	return strconv.FormatFloat(s.value, 'f', -1, 64)
}

// MarshalJSON encodes an unset score as null
func (s Sentiment) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte("null"), nil
	}
	return json.Marshal(s.value)
}

// UnmarshalJSON decodes null as unset
func (s *Sentiment) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = Unset()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = SentimentOf(v)
	return nil
}
