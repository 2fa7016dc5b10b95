package dictext

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeBasicHTMLEntities(t *testing.T) {
	require.Equal(t, `<a href="x">`, DecodeBasicHTMLEntities("&lt;a href=&quot;x&quot;&gt;"))
	require.Equal(t, "Tom & Jerry's", DecodeBasicHTMLEntities("Tom &amp; Jerry&#39;s"))
}

func TestStripHTMLTags(t *testing.T) {
	require.Equal(t, "hello world", StripHTMLTags("<p>hello <b>world</b></p>"))
	require.Equal(t, "a b", StripHTMLTags("a&nbsp;b"))
}

func TestCompactWS(t *testing.T) {
	require.Equal(t, "a b c", CompactWS("  a   b\tc\n"))
	require.Equal(t, "", CompactWS("   "))
}

func TestPathStem(t *testing.T) {
	require.Equal(t, "master", PathStem("/dir/master.hhc"))
	require.Equal(t, "abriss", PathStem("abriss.htm"))
	require.Equal(t, "noext", PathStem("noext"))
}

func TestFindAllTagValues(t *testing.T) {
	text := `<param name="Name" value="Apfel"><param name="Name" value="Birne">`
	require.Empty(t, FindAllTagValues(text, "missing"))

	text2 := "<title>One</title> junk <TITLE>  Two  </TITLE>"
	require.Equal(t, []string{"One", "Two"}, FindAllTagValues(text2, "title"))
}

func TestFirstParagraphHTML(t *testing.T) {
	p, ok := FirstParagraphHTML(`<html><body><p class="x">hi <b>there</b></p><p>second</p></body></html>`)
	require.True(t, ok)
	require.Equal(t, `hi <b>there</b>`, p)
}

func TestBodyHTML(t *testing.T) {
	b, ok := BodyHTML("<html><body>content</body></html>")
	require.True(t, ok)
	require.Equal(t, "content", b)

	_, ok = BodyHTML("<html><head></head></html>")
	require.False(t, ok)
}

func TestExtractFirstBoldText(t *testing.T) {
	text := `<html><body><p><b>Apfel</b> noun</p></body></html>`
	v, ok := ExtractFirstBoldText(text)
	require.True(t, ok)
	require.Equal(t, "Apfel", v)
}

func TestExtractAttrValue(t *testing.T) {
	v, ok := ExtractAttrValue(`<param name="Name" value="Apfel">`, "value")
	require.True(t, ok)
	require.Equal(t, "Apfel", v)

	_, ok = ExtractAttrValue(`<param name="Name">`, "value")
	require.False(t, ok)

	v2, ok := ExtractAttrValue(`<a href='single.htm'>`, "href")
	require.True(t, ok)
	require.Equal(t, "single.htm", v2)
}
