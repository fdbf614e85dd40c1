// Package cfg provides decoding of driver option maps into typed structs.
package cfg

import (
	"github.com/mitchellh/mapstructure"
)

// Setter is the interface an options struct may implement to fill in
// default values after decoding.
type Setter interface {
	ApplyDefaults()
}

// Decode decodes the given raw option map into the target pointer c.
// If c implements Setter, ApplyDefaults() is called after decoding.
func Decode(input map[string]any, c any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   c,
		TagName:  "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(input); err != nil {
		return err
	}

	if s, ok := c.(Setter); ok {
		s.ApplyDefaults()
	}

	return nil
}
