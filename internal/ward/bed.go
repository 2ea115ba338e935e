package ward

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a server-assigned identifier. The bed service may encode ids as JSON
// numbers or strings; the original encoding is kept so ids round-trip
// unchanged in request bodies.
type ID struct {
	raw     string
	numeric bool
}

// NumericID builds an id that encodes as a JSON number.
func NumericID(n int64) ID {
	return ID{raw: strconv.FormatInt(n, 10), numeric: true}
}

// StringID builds an id that encodes as a JSON string.
func StringID(s string) ID {
	return ID{raw: s}
}

// String returns the id as it would appear in a URL path.
func (id ID) String() string { return id.raw }

// IsZero reports whether the id was never set.
func (id ID) IsZero() bool { return id.raw == "" }

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.raw), nil
	}
	return json.Marshal(id.raw)
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ID{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("ward: decode id: %w", err)
		}
		*id = StringID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("ward: decode id: %w", err)
	}
	*id = ID{raw: n.String(), numeric: true}
	return nil
}

// Bed is one physical bed as reported by the bed service.
type Bed struct {
	ID        ID     `json:"id"`
	BedNumber string `json:"bedNumber"`
	PatientID *ID    `json:"patientId"`
}

// Occupied is derived from the patient reference: a bed is occupied exactly
// when the service reports a non-null patientId.
func (b Bed) Occupied() bool {
	return b.PatientID != nil
}

// Patient returns the patient reference for display, or "" for a vacant bed.
func (b Bed) Patient() string {
	if b.PatientID == nil {
		return ""
	}
	return b.PatientID.String()
}

// Label is the bed number, falling back to the id when the service sent no
// number.
func (b Bed) Label() string {
	if b.BedNumber != "" {
		return b.BedNumber
	}
	return b.ID.String()
}
