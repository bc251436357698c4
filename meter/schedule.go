package meter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSchedule indicates a schedule file could not be used.
var ErrInvalidSchedule = errors.New("meter: invalid schedule")

// LoadSchedule reads a YAML price list. Prices the file leaves out keep
// their DefaultSchedule value.
func LoadSchedule(path string) (Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schedule{}, fmt.Errorf("meter: read %s: %w", path, err)
	}
	return ParseSchedule(data)
}

// ParseSchedule decodes a YAML price list over DefaultSchedule. Unknown keys
// are rejected.
func ParseSchedule(data []byte) (Schedule, error) {
	sched := DefaultSchedule
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sched); err != nil && !errors.Is(err, io.EOF) {
		return Schedule{}, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	if sched.Base == 0 {
		return Schedule{}, fmt.Errorf("%w: base must be positive", ErrInvalidSchedule)
	}
	return sched, nil
}
