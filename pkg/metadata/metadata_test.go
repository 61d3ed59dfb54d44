package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	NullParser
	events []string
	child  ElementParser
}

func (r *recorder) ProcessOpen(name, data string) bool {
	r.events = append(r.events, "open "+name+" "+data)
	return true
}

func (r *recorder) ProcessAttribute(name, value string) bool {
	r.events = append(r.events, "attr "+name+"="+value)
	return true
}

func (r *recorder) ProcessElement(name, data string) ElementParser {
	r.events = append(r.events, "child "+name)
	return r.child
}

func (r *recorder) ProcessClose(name string) bool {
	r.events = append(r.events, "close "+name)
	return true
}

func TestRouterDispatchesByElement(t *testing.T) {
	assert := assert.New(t)

	child := &recorder{}
	top := &recorder{child: child}
	r := NewRouter()
	r.Register("ntk_ptz_zoom_speed", top)

	err := r.Parse(`<ntk_ptz_zoom_speed zoom_speed="0.5"><inner a="b">text</inner></ntk_ptz_zoom_speed><unknown x="1"/>`)
	require.NoError(t, err)

	assert.Equal([]string{
		"open ntk_ptz_zoom_speed ",
		"attr zoom_speed=0.5",
		"child inner",
		"close ntk_ptz_zoom_speed",
	}, top.events)
	assert.Equal([]string{
		"open inner text",
		"attr a=b",
		"close inner",
	}, child.events)
}

func TestHandleAttributes(t *testing.T) {
	assert := assert.New(t)

	var got []map[string]string
	r := NewRouter()
	r.HandleAttributes("ntk_ptz_pan_tilt_speed", func(attrs map[string]string) {
		got = append(got, attrs)
	})

	require.NoError(t, r.Parse(`<ntk_ptz_pan_tilt_speed pan_speed="0.25" tilt_speed="-1"/>`))
	require.NoError(t, r.Parse(`<ntk_ptz_pan_tilt_speed pan_speed="1"/>`))

	require.Len(t, got, 2)
	assert.Equal(map[string]string{"pan_speed": "0.25", "tilt_speed": "-1"}, got[0])
	assert.Equal(map[string]string{"pan_speed": "1"}, got[1])

	r.Unregister("ntk_ptz_pan_tilt_speed")
	require.NoError(t, r.Parse(`<ntk_ptz_pan_tilt_speed pan_speed="1"/>`))
	assert.Len(got, 2)
}

type refuser struct{ NullParser }

func (refuser) ProcessAttribute(name, value string) bool { return false }

func TestParseErrors(t *testing.T) {
	assert := assert.New(t)

	r := NewRouter()
	r.Register("no", refuser{})

	assert.ErrorIs(r.Parse(`<no a="1"/>`), ErrRejected)
	assert.Error(r.Parse(`<open>`))
	assert.Error(r.Parse(`<a></b>`))
	assert.NoError(r.Parse(``))
}

func TestBuilders(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(`<note>hello</note>`, Element("note", "hello"))
	assert.Equal(`<e a="1" b="x &amp; &#34;y&#34;"/>`, ElementAttrs("e", map[string]string{"b": `x & "y"`, "a": "1"}))
	assert.Equal(`<e/>`, ElementAttrs("e", nil))

	assert.Equal(`<ndi_capabilities ntk_ptz="false"/>`, Capabilities(false))
	assert.Contains(Capabilities(true), `ntk_pan_tilt="true"`)
	assert.Contains(Capabilities(true), `ntk_record="false"`)
}

func TestAttributeValues(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(0.5, Float("0.5", 1))
	assert.Equal(1.0, Float("nope", 1))
	assert.Equal(-1, Int("", -1))
	assert.Equal(12, Int("12", -1))
}
