// Package metadata routes the XML messages carried on the metadata channel
// to handlers registered by element name, and builds outgoing messages.
package metadata

import (
	"encoding/xml"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ElementParser receives the events of one element and its children.
// Returning false stops the parse.
type ElementParser interface {
	ProcessOpen(name, data string) bool
	ProcessAttribute(name, value string) bool
	// ProcessElement returns the parser for a child element, or nil to
	// ignore it.
	ProcessElement(name, data string) ElementParser
	ProcessClose(name string) bool
}

// NullParser accepts and ignores everything. Embed it to implement only
// the events a handler needs.
type NullParser struct{}

func (NullParser) ProcessOpen(name, data string) bool             { return true }
func (NullParser) ProcessAttribute(name, value string) bool       { return true }
func (NullParser) ProcessElement(name, data string) ElementParser { return nil }
func (NullParser) ProcessClose(name string) bool                  { return true }

// Router dispatches top-level elements to the parser registered for
// their name. Unknown elements are ignored.
type Router struct {
	mu      sync.RWMutex
	parsers map[string]func() ElementParser
}

func NewRouter() *Router {
	return &Router{parsers: make(map[string]func() ElementParser)}
}

func (r *Router) Register(element string, p ElementParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[element] = func() ElementParser { return p }
}

// HandleAttributes registers fn to receive the attributes of every
// element named element.
func (r *Router) HandleAttributes(element string, fn func(attrs map[string]string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[element] = func() ElementParser {
		return &attributeParser{fn: fn, attrs: make(map[string]string)}
	}
}

func (r *Router) Unregister(element string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.parsers, element)
}

func (r *Router) lookup(element string) ElementParser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.parsers[element]; ok {
		return p()
	}
	return NullParser{}
}

type attributeParser struct {
	NullParser
	fn    func(map[string]string)
	attrs map[string]string
}

func (p *attributeParser) ProcessAttribute(name, value string) bool {
	p.attrs[name] = value
	return true
}

func (p *attributeParser) ProcessClose(name string) bool {
	p.fn(p.attrs)
	return true
}

type node struct {
	name     string
	attrs    []xml.Attr
	text     strings.Builder
	children []*node
}

// Parse reads every top-level element in data and routes it.
func (r *Router) Parse(data string) error {
	roots, err := parseTree(data)
	if err != nil {
		return err
	}
	for _, n := range roots {
		if !walk(r.lookup(n.name), n) {
			return ErrRejected
		}
	}
	return nil
}

func walk(p ElementParser, n *node) bool {
	if p == nil {
		p = NullParser{}
	}
	if !p.ProcessOpen(n.name, strings.TrimSpace(n.text.String())) {
		return false
	}
	for _, a := range n.attrs {
		if !p.ProcessAttribute(a.Name.Local, a.Value) {
			return false
		}
	}
	for _, c := range n.children {
		if !walk(p.ProcessElement(c.name, strings.TrimSpace(c.text.String())), c) {
			return false
		}
	}
	return p.ProcessClose(n.name)
}

func parseTree(data string) ([]*node, error) {
	dec := xml.NewDecoder(strings.NewReader(data))

	var roots []*node
	var stack []*node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "parse metadata")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local, attrs: t.Attr}
			if len(stack) == 0 {
				roots = append(roots, n)
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	return roots, nil
}
