package llm

import (
	"bytes"
	"encoding/json"
	"reflect"
	"regexp"
	"strings"
)

// RawTextKey is the single key of the fallback shape.
const RawTextKey = "raw_text"

// StructuredResult is either a parsed JSON value or, when the model reply was not JSON,
// the fallback wrapper {"raw_text": text}. Fallback distinguishes the second case from a
// genuinely extracted field that happens to be called raw_text.
type StructuredResult struct {
	Value    any
	RawText  string
	Fallback bool
}

// FromValue wraps an already-decoded JSON value.
func FromValue(v any) StructuredResult {
	return StructuredResult{Value: v}
}

// RawTextResult builds the fallback shape.
func RawTextResult(text string) StructuredResult {
	return StructuredResult{RawText: text, Fallback: true}
}

// AsAny returns the value as it appears on the wire.
func (r StructuredResult) AsAny() any {
	if r.Fallback {
		return map[string]any{RawTextKey: r.RawText}
	}
	return r.Value
}

// Map returns the top-level object, or nil when the value is not an object.
func (r StructuredResult) Map() map[string]any {
	m, _ := r.AsAny().(map[string]any)
	return m
}

func (r StructuredResult) Equal(o StructuredResult) bool {
	return r.Fallback == o.Fallback && reflect.DeepEqual(r.AsAny(), o.AsAny())
}

func (r StructuredResult) MarshalJSON() ([]byte, error) {
	return marshalNoEscape(r.AsAny(), "")
}

// UnmarshalJSON decodes a stored value. A lone raw_text string key is read back as the
// fallback shape, matching what the parser would have produced.
func (r *StructuredResult) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = classify(v)
	return nil
}

func classify(v any) StructuredResult {
	if m, ok := v.(map[string]any); ok && len(m) == 1 {
		if s, ok := m[RawTextKey].(string); ok {
			return RawTextResult(s)
		}
	}
	return FromValue(v)
}

// MarshalCanonical renders the result as two-space indented JSON with non-ASCII and
// HTML characters written verbatim.
func MarshalCanonical(r StructuredResult) ([]byte, error) {
	return marshalNoEscape(r.AsAny(), "  ")
}

func marshalNoEscape(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

const fence = "```"

// opening fence with an optional language tag such as json, JSON or javascript
var fenceOpener = regexp.MustCompile("^```[A-Za-z0-9_+-]*")

// StripCodeFences removes one leading ``` opener, with or without a language tag, and one
// trailing ``` closer.
func StripCodeFences(text string) string {
	s := strings.TrimSpace(text)
	if loc := fenceOpener.FindStringIndex(s); loc != nil {
		s = s[loc[1]:]
	}
	if strings.HasSuffix(s, fence) {
		s = s[:len(s)-len(fence)]
	}
	return strings.TrimSpace(s)
}

// ParseResponse recovers a StructuredResult from free-form model text. It never fails:
// anything that is not strict JSON after fence stripping becomes the raw_text fallback.
func ParseResponse(text string) StructuredResult {
	s := StripCodeFences(text)
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return RawTextResult(s)
	}
	return FromValue(v)
}
