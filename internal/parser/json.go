package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dgallion1/guideseg/internal/doctree"
)

// JSONParser reads elements already produced by an upstream layout parser,
// either as a bare array or as {"elements": [...]}. Element order in the
// file is document order.
type JSONParser struct{}

func (p *JSONParser) Parse(r io.Reader, filename string) ([]doctree.Element, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var list []doctree.Element
	if trimmed := bytes.TrimSpace(src); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &list)
	} else {
		var wrapper struct {
			Elements []doctree.Element `json:"elements"`
		}
		err = json.Unmarshal(trimmed, &wrapper)
		list = wrapper.Elements
	}
	if err != nil {
		return nil, fmt.Errorf("decode elements: %w", err)
	}

	for i := range list {
		list[i].Seq = i
		if list[i].Type == "" {
			list[i].Type = doctree.TypeText
		}
		if list[i].Page < 0 {
			return nil, fmt.Errorf("element %d: negative page %d", i, list[i].Page)
		}
	}
	return list, nil
}
