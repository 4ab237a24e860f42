// Package yaml provides a dynform.ConfigDriver for YAML form configs.
//
// Documents are decoded through yaml.Node so duplicate mapping keys are
// reported with their positions, converted into JSON-compatible values and
// then handed to dynform.DecodeJSON. Both condition syntaxes therefore work
// the same way in YAML and JSON.
package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	j "github.com/goccy/go-json"
	y "gopkg.in/yaml.v3"

	"github.com/reoring/dynform"
)

// Driver returns a dynform.ConfigDriver backed by gopkg.in/yaml.v3.
func Driver() dynform.ConfigDriver { return driverYAML{} }

type driverYAML struct{}

func (driverYAML) Decode(data []byte) ([]dynform.FieldConfig, error) { return Decode(data) }
func (driverYAML) Name() string                                      { return "yaml.v3" }
func (driverYAML) Format() string                                    { return dynform.FormatYAML }

// DuplicateKeyError reports a mapping key that appears twice, with both
// positions.
type DuplicateKeyError struct {
	Key       string
	FirstLine int
	FirstCol  int
	Line      int
	Col       int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate YAML key %q at %d:%d (first at %d:%d)", e.Key, e.Line, e.Col, e.FirstLine, e.FirstCol)
}

// Decode reads the first YAML document of data as a list of field configs.
func Decode(data []byte) ([]dynform.FieldConfig, error) {
	v, err := ToJSONValue(data)
	if err != nil {
		return nil, err
	}
	if _, ok := v.([]any); !ok {
		return nil, errors.New("config must be a YAML sequence of fields")
	}
	b, err := j.Marshal(v)
	if err != nil {
		return nil, err
	}
	return dynform.DecodeJSON(b)
}

// ToJSONValue decodes the first YAML document of data into map[string]any,
// []any and scalar values. Empty input yields an error.
func ToJSONValue(data []byte) (any, error) {
	var root y.Node
	if err := y.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty config")
		}
		return nil, err
	}
	return convert(&root)
}

func convert(n *y.Node) (any, error) {
	switch n.Kind {
	case y.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return convert(n.Content[0])
	case y.AliasNode:
		if n.Alias == nil {
			return nil, nil
		}
		return convert(n.Alias)
	case y.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		first := make(map[string][2]int, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if pos, dup := first[k.Value]; dup {
				return nil, &DuplicateKeyError{Key: k.Value, FirstLine: pos[0], FirstCol: pos[1], Line: k.Line, Col: k.Column}
			}
			first[k.Value] = [2]int{k.Line, k.Column}
			val, err := convert(v)
			if err != nil {
				return nil, err
			}
			m[k.Value] = val
		}
		return m, nil
	case y.SequenceNode:
		arr := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := convert(c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case y.ScalarNode:
		return scalar(n), nil
	default:
		return nil, nil
	}
}

func scalar(n *y.Node) any {
	switch n.ShortTag() {
	case "!!null":
		return nil
	case "!!bool":
		if b, err := strconv.ParseBool(n.Value); err == nil {
			return b
		}
	case "!!int":
		if i, err := strconv.ParseInt(n.Value, 0, 64); err == nil {
			return i
		}
	case "!!float":
		if f, err := strconv.ParseFloat(n.Value, 64); err == nil {
			return f
		}
	}
	return n.Value
}
