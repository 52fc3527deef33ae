package ecommerce

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/clbanning/mxj/v2"
	"github.com/erp/catalogsync/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Response decoding
// ---------------------------------------------------------------------------

// DecodeBody converts a response body into a document tree. JSON is tried
// first, XML second; anything else decodes to a null node.
func DecodeBody(raw []byte) integration.Node {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return integration.Null()
	}
	if node, err := decodeJSON(trimmed); err == nil {
		return node
	}
	if node, err := decodeXML(trimmed); err == nil {
		return node
	}
	return integration.Null()
}

func decodeJSON(raw []byte) (integration.Node, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	node, err := decodeJSONValue(dec)
	if err != nil {
		return integration.Null(), err
	}
	if _, err := dec.Token(); err != io.EOF {
		return integration.Null(), errors.New("trailing data after JSON value")
	}
	return node, nil
}

func decodeJSONValue(dec *json.Decoder) (integration.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return integration.Null(), err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			var fields []integration.Field
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return integration.Null(), err
				}
				key, _ := keyTok.(string)
				value, err := decodeJSONValue(dec)
				if err != nil {
					return integration.Null(), err
				}
				fields = append(fields, integration.Field{Key: key, Value: value})
			}
			if _, err := dec.Token(); err != nil {
				return integration.Null(), err
			}
			return integration.Object(fields...), nil
		case '[':
			var items []integration.Node
			for dec.More() {
				item, err := decodeJSONValue(dec)
				if err != nil {
					return integration.Null(), err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return integration.Null(), err
			}
			return integration.Array(items...), nil
		}
		return integration.Null(), fmt.Errorf("unexpected delimiter %q", v)
	case string:
		return integration.Scalar(v), nil
	case json.Number:
		return integration.Scalar(v.String()), nil
	case bool:
		if v {
			return integration.Scalar("true"), nil
		}
		return integration.Scalar("false"), nil
	case nil:
		return integration.Null(), nil
	}
	return integration.Null(), fmt.Errorf("unexpected token %v", tok)
}

// xmlElement accumulates one element while walking the token stream
type xmlElement struct {
	name     string
	attrs    []integration.Field
	children []integration.Field
	text     strings.Builder
}

func (e *xmlElement) node() integration.Node {
	text := strings.TrimSpace(e.text.String())
	if len(e.attrs) == 0 && len(e.children) == 0 {
		return integration.Scalar(text)
	}
	fields := append([]integration.Field{}, e.attrs...)
	fields = append(fields, e.children...)
	if text != "" {
		fields = append(fields, integration.Field{Key: "#text", Value: integration.Scalar(text)})
	}
	return integration.Object(fields...)
}

// decodeXML builds an ordered tree. Attributes become fields keyed by local
// name, listed before child elements.
func decodeXML(raw []byte) (integration.Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false

	var stack []*xmlElement
	var root *integration.Field

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return integration.Null(), err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &xmlElement{name: t.Name.Local}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				el.attrs = append(el.attrs, integration.Field{Key: a.Name.Local, Value: integration.Scalar(a.Value)})
			}
			stack = append(stack, el)
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				return integration.Null(), errors.New("unbalanced XML")
			}
			el := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			field := integration.Field{Key: el.name, Value: el.node()}
			if len(stack) == 0 {
				root = &field
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, field)
			}
		}
	}

	if root == nil || len(stack) != 0 {
		return integration.Null(), errors.New("no XML document element")
	}
	return integration.Object(*root), nil
}

// ---------------------------------------------------------------------------
// Payload encoding
// ---------------------------------------------------------------------------

// EncodePayload renders a PATCH payload. XML payloads are wrapped in root.
func EncodePayload(payload map[string]any, useXML bool, root string) ([]byte, string, error) {
	if useXML {
		body, err := mxj.Map(payload).Xml(root)
		if err != nil {
			return nil, "", fmt.Errorf("prestashop: encode xml payload: %w", err)
		}
		return append([]byte(xml.Header), body...), "application/xml", nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("prestashop: encode json payload: %w", err)
	}
	return body, "application/json", nil
}
