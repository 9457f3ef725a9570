package herosms

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Status is the provider-owned activation state as observed at poll time.
// It is decoded fresh on every getStatus call and never tracked locally.
type Status string

const (
	StatusOK        Status = "ok"
	StatusWaiting   Status = "waiting"
	StatusRetry     Status = "retry"
	StatusCancelled Status = "cancelled"
	StatusUnknown   Status = "unknown"
)

// Terminal reports whether further polling is meaningful.
func (s Status) Terminal() bool {
	return s == StatusOK || s == StatusCancelled
}

// Activation status codes accepted by setStatus.
const (
	ActionReady    = 1
	ActionRetry    = 3
	ActionComplete = 6
	ActionCancel   = 8
)

// ValidAction reports whether code is one of the provider-defined
// setStatus codes.
func ValidAction(code int) bool {
	switch code {
	case ActionReady, ActionRetry, ActionComplete, ActionCancel:
		return true
	}
	return false
}

// Order is a rented activation as returned by getNumber. The phone number
// is normalized without a leading "+".
type Order struct {
	ID       string  `json:"id"`
	Number   string  `json:"number"`
	Cost     float64 `json:"cost,omitempty"`
	Operator string  `json:"operator,omitempty"`
	Country  string  `json:"country,omitempty"`
}

// StatusSnapshot is one decoded getStatus reply. Raw carries the verbatim
// upstream payload when the status is unknown.
type StatusSnapshot struct {
	Status Status `json:"status"`
	Code   string `json:"code,omitempty"`
	Raw    string `json:"raw,omitempty"`
}

// ServiceEntry identifies a purchasable service.
type ServiceEntry struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// TopCountryQuote is one row of getTopCountriesByService. Price is nil when
// the upstream value carried no resolvable price, so callers can render N/A.
type TopCountryQuote struct {
	CountryID int      `json:"countryId"`
	Price     *float64 `json:"price"`
	Count     int      `json:"availableCount"`
}

// flexString decodes a JSON value that the provider has shipped both as a
// string and as a bare number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(b)
	return nil
}

// flexFloat decodes a JSON number that the provider has shipped both quoted
// and bare. Unparseable values read as zero rather than failing the order.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}
