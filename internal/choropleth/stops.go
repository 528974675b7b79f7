package choropleth

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Stop is a single (threshold, color) entry of a color ramp.
// On the wire it is encoded as a two element array: [threshold, "color"].
type Stop struct {
	Color     string
	Threshold float64
}

// Stops is an ordered color ramp, strictly increasing by threshold.
type Stops []Stop

// Validate checks that the ramp is non-empty and strictly increasing.
func (s Stops) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no stops", ErrInvalidStops)
	}

	for i := 1; i < len(s); i++ {
		if s[i].Threshold <= s[i-1].Threshold {
			return fmt.Errorf("%w: threshold %v at %d is not greater than %v",
				ErrInvalidStops, s[i].Threshold, i, s[i-1].Threshold)
		}
	}

	return nil
}

// ColorAt evaluates the step function for value.
// Values below the first threshold take the first color, values at or above
// the last threshold take the last color. Returns "" for an empty ramp.
func (s Stops) ColorAt(value float64) string {
	if len(s) == 0 {
		return ""
	}

	color := s[0].Color
	for _, stop := range s {
		if value < stop.Threshold {
			break
		}
		color = stop.Color
	}

	return color
}

// Clone returns a copy that does not share the backing array.
func (s Stops) Clone() Stops {
	if s == nil {
		return nil
	}
	out := make(Stops, len(s))
	copy(out, s)
	return out
}

// MarshalJSON encodes the stop as [threshold, color].
func (s Stop) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{s.Threshold, s.Color})
}

// UnmarshalJSON decodes the stop from [threshold, color].
func (s *Stop) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("stop must be [threshold, color]: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("stop must have 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &s.Threshold); err != nil {
		return fmt.Errorf("stop threshold: %w", err)
	}
	if err := json.Unmarshal(pair[1], &s.Color); err != nil {
		return fmt.Errorf("stop color: %w", err)
	}

	return nil
}

// MarshalYAML encodes the stop as a flow sequence [threshold, color].
func (s Stop) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	threshold := &yaml.Node{}
	if err := threshold.Encode(s.Threshold); err != nil {
		return nil, err
	}
	color := &yaml.Node{}
	if err := color.Encode(s.Color); err != nil {
		return nil, err
	}
	node.Content = []*yaml.Node{threshold, color}

	return node, nil
}

// UnmarshalYAML decodes the stop from a [threshold, color] sequence.
func (s *Stop) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode || len(value.Content) != 2 {
		return fmt.Errorf("line %d: stop must be [threshold, color]", value.Line)
	}
	if err := value.Content[0].Decode(&s.Threshold); err != nil {
		return fmt.Errorf("line %d: stop threshold: %w", value.Line, err)
	}
	if err := value.Content[1].Decode(&s.Color); err != nil {
		return fmt.Errorf("line %d: stop color: %w", value.Line, err)
	}

	return nil
}
