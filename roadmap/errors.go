package roadmap

import "fmt"

// GenerationError indicates roadmap generation failed and no roadmap
// was produced.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("roadmap generation: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("roadmap generation: %s", e.Reason)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
