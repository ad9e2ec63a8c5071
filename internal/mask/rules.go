package mask

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Range is an inclusive [Low, High] band over one channel's byte values.
type Range struct {
	Low  uint8 `yaml:"low"`
	High uint8 `yaml:"high"`
}

// FullRange admits every channel value.
var FullRange = Range{Low: 0, High: 255}

// Contains reports whether v falls inside the range.
func (r Range) Contains(v uint8) bool {
	return v >= r.Low && v <= r.High
}

// ColorRule selects pixels whose hue, saturation, value and Laplacian
// response all fall inside the rule's per-channel ranges (intersection
// across channels).
type ColorRule struct {
	Hue        Range `yaml:"hue"`
	Saturation Range `yaml:"saturation"`
	Value      Range `yaml:"value"`
	Laplacian  Range `yaml:"laplacian"`
}

// NewColorRule returns a rule admitting every pixel; callers narrow the
// channels they care about.
func NewColorRule() ColorRule {
	return ColorRule{
		Hue:        FullRange,
		Saturation: FullRange,
		Value:      FullRange,
		Laplacian:  FullRange,
	}
}

// Range returns the rule's range for the given channel.
func (r ColorRule) Range(ch Channel) Range {
	switch ch {
	case ChannelHue:
		return r.Hue
	case ChannelSaturation:
		return r.Saturation
	case ChannelValue:
		return r.Value
	default:
		return r.Laplacian
	}
}

// SetRange sets the rule's range for the given channel.
func (r *ColorRule) SetRange(ch Channel, rg Range) {
	switch ch {
	case ChannelHue:
		r.Hue = rg
	case ChannelSaturation:
		r.Saturation = rg
	case ChannelValue:
		r.Value = rg
	case ChannelLaplacian:
		r.Laplacian = rg
	}
}

// Validate checks that every channel range is well-formed.
func (r ColorRule) Validate() error {
	for _, ch := range ChannelOrder() {
		rg := r.Range(ch)
		if rg.Low > rg.High {
			return fmt.Errorf("%w: %s range [%d, %d] has low > high",
				ErrInvalidRuleSet, ch, rg.Low, rg.High)
		}
	}
	return nil
}

// UnmarshalYAML decodes a rule from a channel-name keyed mapping. Channels
// not named default to the full range; unknown channel names are rejected.
func (r *ColorRule) UnmarshalYAML(value *yaml.Node) error {
	raw := map[string]Range{}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	*r = NewColorRule()
	for name, rg := range raw {
		ch, err := ParseChannel(name)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRuleSet, err)
		}
		r.SetRange(ch, rg)
	}
	return nil
}

// RuleSet is an ordered sequence of color rules. A pixel belongs to the
// rule set's mask iff it satisfies at least one rule (union across rules).
type RuleSet []ColorRule

// Validate checks every rule in the set.
func (rs RuleSet) Validate() error {
	for i, rule := range rs {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return nil
}
