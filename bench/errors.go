package bench

import "errors"

var (
	// ErrUnknownStep indicates a scenario step names an operation the driver does not know.
	ErrUnknownStep = errors.New("bench: unknown step")

	// ErrScenarioFailed indicates at least one scenario returned an error.
	ErrScenarioFailed = errors.New("bench: scenario failed")

	// ErrInvalidScenario indicates a scenario file could not be used.
	ErrInvalidScenario = errors.New("bench: invalid scenario")
)
