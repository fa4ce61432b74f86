package style

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
)

// ValueKind tags the variant held by a FieldValue.
type ValueKind uint8

const (
	StrValue ValueKind = iota
	NumValue
	DateValue
)

func (k ValueKind) String() string {
	switch k {
	case NumValue:
		return "num"
	case DateValue:
		return "date"
	default:
		return "str"
	}
}

// FieldValue is a classification value: a string, a number, or a date.
//
// In JSON a string is a string, a number is a number and a date is an object
// {"date": "2020-01-01"}.
type FieldValue struct {
	Kind ValueKind
	Str  string  // Str and Date values
	Num  float64 // Num values
}

// Str returns a string value.
func Str(s string) FieldValue { return FieldValue{Kind: StrValue, Str: s} }

// Num returns a numeric value.
func Num(n float64) FieldValue { return FieldValue{Kind: NumValue, Num: n} }

// Date returns a date value from its textual form.
func Date(s string) FieldValue { return FieldValue{Kind: DateValue, Str: s} }

// Text returns the unquoted literal text of v.
func (v FieldValue) Text() string {
	if v.Kind == NumValue {
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
	return v.Str
}

// Float returns v as a number when it is numeric or a numeric string.
func (v FieldValue) Float() (float64, bool) {
	switch v.Kind {
	case NumValue:
		return v.Num, true
	case StrValue:
		f, err := strconv.ParseFloat(v.Str, 64)
		return f, err == nil
	}
	return 0, false
}

// Key identifies v for equality: two values with the same key are the same
// category value.
func (v FieldValue) Key() string {
	return v.Kind.String() + ":" + v.Text()
}

func (v FieldValue) String() string {
	return v.Text()
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case NumValue:
		return json.Marshal(v.Num)
	case DateValue:
		return json.Marshal(map[string]string{"date": v.Str})
	default:
		return json.Marshal(v.Str)
	}
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty field value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Str(s)
	case '{':
		var obj struct {
			Date *string `json:"date"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if obj.Date == nil {
			return fmt.Errorf("field value object must have a \"date\" member")
		}
		*v = Date(*obj.Date)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("field value must be a string, number or date object: %w", err)
		}
		*v = Num(n)
	}
	return nil
}

// Schema describes the JSON shape of a FieldValue for OpenAPI.
func (FieldValue) Schema(r huma.Registry) *huma.Schema {
	return &huma.Schema{
		Description: "A string, a number, or a date object",
		OneOf: []*huma.Schema{
			{Type: huma.TypeString},
			{Type: huma.TypeNumber},
			{
				Type:       huma.TypeObject,
				Properties: map[string]*huma.Schema{"date": {Type: huma.TypeString}},
				Required:   []string{"date"},
			},
		},
	}
}
