package metadata

import (
	"bytes"
	"encoding/xml"
	"sort"
	"strconv"
)

// Element wraps data, which may itself be markup, in <name>...</name>.
func Element(name, data string) string {
	return "<" + name + ">" + data + "</" + name + ">"
}

// ElementAttrs renders a self-closing element with attributes in key
// order.
func ElementAttrs(name string, attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b bytes.Buffer
	b.WriteString("<")
	b.WriteString(name)
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString(`="`)
		xml.EscapeText(&b, []byte(attrs[k]))
		b.WriteString(`"`)
	}
	b.WriteString("/>")
	return b.String()
}

// Capabilities is the connection metadata a sender announces.
func Capabilities(ptz bool) string {
	if ptz {
		return `<ndi_capabilities ntk_ptz="true" ntk_pan_tilt="true" ntk_zoom="true" ntk_iris="false" ntk_white_balance="false" ntk_exposure="false" ntk_record="false"/>`
	}
	return `<ndi_capabilities ntk_ptz="false"/>`
}

// Float parses an attribute value, falling back to def.
func Float(value string, def float64) float64 {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return v
}

// Int parses an attribute value, falling back to def.
func Int(value string, def int) int {
	v, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return v
}
