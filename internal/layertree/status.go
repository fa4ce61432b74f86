package layertree

import (
	"encoding/json"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
)

// Status is the loading phase of a node. Statuses are totally ordered by
// Weight.
type Status int

const (
	NewInstance Status = iota
	Registered
	Processing
	Processed
	Loading
	Loaded
	Error
)

var statusNames = [...]string{
	NewInstance: "newInstance",
	Registered:  "registered",
	Processing:  "processing",
	Processed:   "processed",
	Loading:     "loading",
	Loaded:      "loaded",
	Error:       "error",
}

// StatusNames lists every status name in weight order.
func StatusNames() []string {
	return append([]string(nil), statusNames[:]...)
}

// Weight returns the ordering weight of s: 10 for NewInstance up to 70 for
// Error.
func (s Status) Weight() int {
	return (int(s) + 1) * 10
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s >= NewInstance && s <= Error
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// ParseStatus returns the status with the given name.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Schema documents Status as its string name.
func (Status) Schema(r huma.Registry) *huma.Schema {
	enum := make([]any, len(statusNames))
	for i, n := range statusNames {
		enum[i] = n
	}
	return &huma.Schema{Type: huma.TypeString, Enum: enum, Description: "Lifecycle status"}
}

// StatusChanged is emitted whenever a node's status actually changes.
type StatusChanged struct {
	LayerPath string `json:"layerPath" doc:"Path of the node whose status changed" example:"roads/highways"`
	Status    Status `json:"status" doc:"New status" example:"loaded"`
}

func (e StatusChanged) String() string {
	b, _ := json.Marshal(e)
	return string(b)
}
