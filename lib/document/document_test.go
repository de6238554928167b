package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testDoc = `<setBLOBVector device="CCD Simulator" name="CCD1">
  <oneBLOB name="CCD1" format=".fits" size="16" enclen="24">aGVsbG8sIGJsb2IgcGF5bG9hZA==</oneBLOB>
  <oneBLOB name="CCD2" format=".fits" attached="true" size="50000"/>
  <oneBLOB name="CCD3" format=".fits"/>
</setBLOBVector>`

func TestParseAndEnumerate(t *testing.T) {
	doc, err := Parse([]byte(testDoc))
	require.NoError(t, err)
	require.Equal(t, "setBLOBVector", doc.Name())
	require.Equal(t, "CCD Simulator", doc.Attr("device"))

	els := doc.BlobElements()
	require.Len(t, els, 3)

	require.Equal(t, "CCD1", els[0].Name())
	require.False(t, els[0].IsAttached())
	size, ok := els[0].DeclaredSize()
	require.True(t, ok)
	require.Equal(t, 16, size)
	require.NotEmpty(t, els[0].Body())

	require.Equal(t, "CCD2", els[1].Name())
	require.True(t, els[1].IsAttached())
	size, ok = els[1].DeclaredSize()
	require.True(t, ok)
	require.Equal(t, 50000, size)
	require.Empty(t, strings.TrimSpace(string(els[1].Body())))

	require.False(t, els[2].IsAttached())
	_, ok = els[2].DeclaredSize()
	require.False(t, ok)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("not a document"))
	require.Error(t, err)
	_, err = Parse([]byte("<unclosed>"))
	require.Error(t, err)
}

func TestCloneIsolation(t *testing.T) {
	doc, err := Parse([]byte(testDoc))
	require.NoError(t, err)

	clone := doc.Clone()
	clone.BlobElements()[0].SetBody([]byte("changed"))
	clone.BlobElements()[1].SetAttached(false)
	clone.BlobElements()[1].SetDeclaredSize(1)

	// original must be untouched
	els := doc.BlobElements()
	require.NotEqual(t, "changed", string(els[0].Body()))
	require.True(t, els[1].IsAttached())
	size, _ := els[1].DeclaredSize()
	require.Equal(t, 50000, size)
}

func TestSerializeRoundTrip(t *testing.T) {
	doc, err := Parse([]byte(testDoc))
	require.NoError(t, err)

	data, err := doc.Serialize()
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, again.BlobElements(), 3)
	require.Equal(t, doc.BlobElements()[0].Body(), again.BlobElements()[0].Body())
}

func TestRootBlobElement(t *testing.T) {
	doc, err := Parse([]byte(`<oneBLOB name="solo" size="4">AAAA</oneBLOB>`))
	require.NoError(t, err)
	els := doc.BlobElements()
	require.Len(t, els, 1)
	require.Equal(t, "solo", els[0].Name())
}

func TestPlaceholderOffsets(t *testing.T) {
	marker := []byte("b7c9e2d4-marker")

	doc, err := Parse([]byte(testDoc))
	require.NoError(t, err)

	clone := doc.Clone()
	for _, el := range clone.BlobElements()[:2] {
		el.SetBody(marker)
	}
	skeleton, err := clone.Serialize()
	require.NoError(t, err)

	offsets, err := PlaceholderOffsets(skeleton, marker, 2)
	require.NoError(t, err)
	require.Len(t, offsets, 2)
	for _, off := range offsets {
		require.Equal(t, marker, skeleton[off:off+len(marker)])
	}
	require.Less(t, offsets[0], offsets[1])

	// wrong expectation is an error, not a silent mis-split
	_, err = PlaceholderOffsets(skeleton, marker, 3)
	require.Error(t, err)

	_, err = PlaceholderOffsets(skeleton, nil, 0)
	require.Error(t, err)
}

func TestPlaceholderMarkerSurvivesSerialization(t *testing.T) {
	// the XML writer drops characters that are invalid in XML text, so a
	// control byte silently disappears from the skeleton; markers are
	// restricted to plain text for exactly this reason
	doc, err := Parse([]byte(testDoc))
	require.NoError(t, err)

	clone := doc.Clone()
	clone.BlobElements()[0].SetBody([]byte{0x01})
	skeleton, err := clone.Serialize()
	require.NoError(t, err)
	require.NotContains(t, string(skeleton), "\x01")

	clone = doc.Clone()
	clone.BlobElements()[0].SetBody([]byte("plain-text-marker"))
	skeleton, err = clone.Serialize()
	require.NoError(t, err)
	require.Contains(t, string(skeleton), "plain-text-marker")
}

func TestPlaceholderOffsetsRejectsContentCollision(t *testing.T) {
	marker := []byte("collide-me")

	doc, err := Parse([]byte(`<setBLOBVector name="v" label="collide-me"><oneBLOB name="b">payload</oneBLOB></setBLOBVector>`))
	require.NoError(t, err)

	doc.BlobElements()[0].SetBody(marker)
	skeleton, err := doc.Serialize()
	require.NoError(t, err)

	// the marker occurs once as content and once as placeholder
	_, err = PlaceholderOffsets(skeleton, marker, 1)
	require.Error(t, err)
}

func TestSetEncLen(t *testing.T) {
	doc, err := Parse([]byte(testDoc))
	require.NoError(t, err)

	el := doc.BlobElements()[0]
	el.SetEncLen(100)
	data, err := doc.Serialize()
	require.NoError(t, err)
	require.Contains(t, string(data), `enclen="100"`)

	el.SetEncLen(-1)
	data, err = doc.Serialize()
	require.NoError(t, err)
	require.NotContains(t, string(data), "enclen")
}