// internal/canon/strip.go
package canon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Raw presentation-key stripping.
 *
 * Legacy editors stored view state inline. StripRaw removes it from
 * arbitrary rule JSON without going through the domain model, so keys the
 * model does not know survive and key order is kept:
 *   - keys starting with "editing"
 *   - keys ending with "Expanded" (isExpanded included)
 *   - isCollapsed
 *   - id on condition-group objects (objects with a conditions array)
 *
 * The document is read into an ordered tree with the token API, since
 * map[string]any would reorder keys.
 */

// maxRawDepth bounds nesting of arbitrary JSON; a rule's own nesting is
// bounded separately by types.MaxNestingDepth.
const maxRawDepth = 4 * types.MaxNestingDepth

type member struct {
	key string
	val any
}

type object []member

// StripRaw returns data without presentation keys, compacted.
func StripRaw(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := readValue(dec, 0)
	if err != nil {
		return nil, syntaxError(data, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", types.ErrInvalidJSON)
	}

	var buf bytes.Buffer
	if err := writeValue(&buf, strip(v)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// IsPresentationKey reports whether key holds view state. inGroup is true
// for keys of a condition-group object.
func IsPresentationKey(key string, inGroup bool) bool {
	switch {
	case strings.HasPrefix(key, "editing"):
		return true
	case strings.HasSuffix(key, "Expanded"):
		return true
	case key == "isCollapsed":
		return true
	case inGroup && key == "id":
		return true
	}
	return false
}

func strip(v any) any {
	switch x := v.(type) {
	case object:
		inGroup := false
		for _, m := range x {
			if _, ok := m.val.([]any); ok && m.key == "conditions" {
				inGroup = true
			}
		}
		out := make(object, 0, len(x))
		for _, m := range x {
			if IsPresentationKey(m.key, inGroup) {
				continue
			}
			out = append(out, member{key: m.key, val: strip(m.val)})
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = strip(e)
		}
		return out
	}
	return v
}

func readValue(dec *json.Decoder, depth int) (any, error) {
	if depth > maxRawDepth {
		return nil, fmt.Errorf("nesting exceeds %d levels", maxRawDepth)
	}
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := object{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("object key %v is not a string", kt)
				}
				val, err := readValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				obj = append(obj, member{key: key, val: val})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := []any{}
			for dec.More() {
				val, err := readValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	default:
		return tok, nil
	}
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case object:
		buf.WriteByte('{')
		for i, m := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeScalar(buf, m.key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeValue(buf, m.val); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	}
	return writeScalar(buf, v)
}

func writeScalar(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
