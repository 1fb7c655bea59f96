package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
)

// element is a minimal DOM node. Tag names are lower-cased.
type element struct {
	name     string
	attrs    map[string]string
	text     string
	children []*element
}

func (e *element) attr(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(e.attrs[k]); v != "" {
			return v
		}
	}
	return ""
}

func (e *element) child(name string) *element {
	for _, c := range e.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (e *element) childText(names ...string) string {
	for _, name := range names {
		if c := e.child(name); c != nil {
			if v := strings.TrimSpace(c.text); v != "" {
				return v
			}
		}
	}
	return ""
}

// expand returns a deep copy with every #var# placeholder replaced.
func (e *element) expand(r *strings.Replacer) *element {
	out := &element{
		name:     e.name,
		attrs:    make(map[string]string, len(e.attrs)),
		text:     r.Replace(e.text),
		children: make([]*element, len(e.children)),
	}
	for k, v := range e.attrs {
		out.attrs[k] = r.Replace(v)
	}
	for i, c := range e.children {
		out.children[i] = c.expand(r)
	}
	return out
}

var entityDecl = regexp.MustCompile(`<!ENTITY\s+([A-Za-z_][\w.-]*)\s+(?:"([^"]*)"|'([^']*)'|(SYSTEM|PUBLIC)\b)`)

// parseEntities extracts general entity declarations from a DOCTYPE
// directive. External entities are not fetched and resolve to "".
func parseEntities(directive []byte, into map[string]string) {
	for _, m := range entityDecl.FindAllSubmatch(directive, -1) {
		name := string(m[1])
		switch {
		case m[4] != nil:
			into[name] = ""
		case m[3] != nil:
			into[name] = string(m[3])
		default:
			into[name] = string(m[2])
		}
	}
}

// parseTree decodes data into a list of top-level elements. Fragments with
// several top-level elements are accepted.
func parseTree(source string, data []byte) ([]*element, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, core.NewParseError(source, "empty document", 0)
	}

	entities := make(map[string]string)
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	dec.Entity = entities

	var roots []*element
	var stack []*element
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, newXMLParseError(source, dec.InputOffset(), err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{
				name:  strings.ToLower(t.Name.Local),
				attrs: make(map[string]string, len(t.Attr)),
			}
			for _, a := range t.Attr {
				el.attrs[strings.ToLower(a.Name.Local)] = a.Value
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			} else {
				roots = append(roots, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(t)
			}
		case xml.Directive:
			if bytes.HasPrefix(bytes.TrimSpace(t), []byte("DOCTYPE")) {
				parseEntities(t, entities)
			}
		}
	}

	if len(roots) == 0 {
		return nil, core.NewParseError(source, "no root element", dec.InputOffset())
	}
	return roots, nil
}

func newXMLParseError(source string, offset int64, err error) *core.ParseError {
	perr := core.NewParseError(source, err.Error(), offset)
	perr.Cause = err
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		perr.Reason = syntaxErr.Msg
		perr.Line = syntaxErr.Line
	}
	return perr
}
