package network

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeConfig fills dst, a pointer to an operator configuration struct,
// from the config map of a function. Keys follow the struct's yaml tags;
// unknown keys are rejected.
func DecodeConfig(raw map[string]any, dst any) error {
	if len(raw) == 0 || dst == nil {
		return nil
	}
	doc, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: config: %w", ErrInvalidNetwork, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(doc))
	dec.KnownFields(true)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: config: %w", ErrInvalidNetwork, err)
	}
	return nil
}
