package selection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// State is the tri-state of a chip.
type State int

const (
	Neutral State = iota
	Negative
	Positive
)

func (s State) String() string {
	switch s {
	case Negative:
		return "neg"
	case Positive:
		return "pos"
	}
	return "neutral"
}

// Value is the tagged union a chip holds. Text, Side, Grade and Tags are only
// meaningful when State is Positive.
type Value struct {
	State State
	Text  string
	Side  string
	Grade *int
	Tags  map[string]bool
}

func NeutralValue() Value  { return Value{State: Neutral} }
func NegativeValue() Value { return Value{State: Negative} }
func PositiveValue() Value { return Value{State: Positive} }

func (v Value) IsNeutral() bool  { return v.State == Neutral }
func (v Value) IsNegative() bool { return v.State == Negative }
func (v Value) IsPositive() bool { return v.State == Positive }

// ActiveTags returns the truthy tags, following order first and then any
// remaining tags alphabetically.
func (v Value) ActiveTags(order []string) []string {
	if len(v.Tags) == 0 {
		return nil
	}
	var out []string
	seen := make(map[string]bool, len(order))
	for _, tag := range order {
		seen[tag] = true
		if v.Tags[tag] {
			out = append(out, tag)
		}
	}
	var rest []string
	for tag, on := range v.Tags {
		if on && !seen[tag] {
			rest = append(rest, tag)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	out := v
	if v.Grade != nil {
		g := *v.Grade
		out.Grade = &g
	}
	if v.Tags != nil {
		out.Tags = make(map[string]bool, len(v.Tags))
		for k, on := range v.Tags {
			out.Tags[k] = on
		}
	}
	return out
}

type wireValue struct {
	State string          `json:"state"`
	Text  string          `json:"text,omitempty"`
	Side  string          `json:"side,omitempty"`
	Grade *int            `json:"grade,omitempty"`
	Tags  map[string]bool `json:"tags,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{State: v.State.String()}
	if v.State == Positive {
		w.Text, w.Side, w.Grade, w.Tags = v.Text, v.Side, v.Grade, v.Tags
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts the canonical object form and every legacy shape:
// 0, null, false, "neg", "abn", "pos" and {state:"pos",...}. Anything it does
// not recognise decodes as Neutral rather than failing.
func (v *Value) UnmarshalJSON(data []byte) error {
	*v = NeutralValue()
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		v.State = stateFromString(s)
	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
		*v = valueFromObject(raw)
	}
	return nil
}

func stateFromString(s string) State {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "neg", "negative":
		return Negative
	case "pos", "abn", "positive":
		return Positive
	}
	return Neutral
}

func valueFromObject(raw map[string]json.RawMessage) Value {
	var state string
	if r, ok := raw["state"]; ok {
		_ = json.Unmarshal(r, &state)
	}
	switch stateFromString(state) {
	case Negative:
		return NegativeValue()
	case Neutral:
		return NeutralValue()
	}

	v := PositiveValue()
	if r, ok := raw["text"]; ok {
		_ = json.Unmarshal(r, &v.Text)
	}
	if r, ok := raw["side"]; ok {
		_ = json.Unmarshal(r, &v.Side)
	}
	if r, ok := raw["grade"]; ok {
		var f float64
		if err := json.Unmarshal(r, &f); err == nil && f == math.Trunc(f) && f >= 0 {
			g := int(f)
			v.Grade = &g
		}
	}
	if r, ok := raw["tags"]; ok {
		v.Tags = decodeTags(r)
	}
	return v
}

func decodeTags(r json.RawMessage) map[string]bool {
	var asMap map[string]any
	if err := json.Unmarshal(r, &asMap); err == nil {
		tags := make(map[string]bool, len(asMap))
		for k, on := range asMap {
			b, _ := on.(bool)
			tags[k] = b
		}
		return tags
	}
	var asList []string
	if err := json.Unmarshal(r, &asList); err == nil {
		tags := make(map[string]bool, len(asList))
		for _, k := range asList {
			tags[k] = true
		}
		return tags
	}
	return nil
}

// FieldValues maps field ids to their stored text. Booleans and numbers from
// older saves are kept in their textual form.
type FieldValues map[string]string

func (f *FieldValues) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}
	out := make(FieldValues, len(raw))
	for k, val := range raw {
		switch x := val.(type) {
		case nil:
		case string:
			out[k] = x
		case bool:
			if x {
				out[k] = "true"
			} else {
				out[k] = "false"
			}
		case float64:
			out[k] = formatNumber(x)
		default:
			b, _ := json.Marshal(x)
			out[k] = string(b)
		}
	}
	*f = out
	return nil
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
