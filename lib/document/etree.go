package document

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/beevik/etree"
)

const (
	// blobElementTag is the element name that carries blob payloads in
	// property-update documents.
	blobElementTag = "oneBLOB"
)

// --------------------------------------------------------------------------
// Document Implementation (etree backed)
// --------------------------------------------------------------------------

// docImpl implements IDocument on top of an etree element tree.
type docImpl struct {
	doc *etree.Document
}

// Parse reads a single property-update document from its wire form.
func Parse(data []byte) (IDocument, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse document: %v", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	return &docImpl{doc: doc}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see document/interface.go)
// --------------------------------------------------------------------------

func (d *docImpl) Name() string {
	return d.doc.Root().Tag
}

func (d *docImpl) Attr(key string) string {
	if a := d.doc.Root().SelectAttr(key); a != nil {
		return a.Value
	}
	return ""
}

func (d *docImpl) Clone() IDocument {
	return &docImpl{doc: d.doc.Copy()}
}

func (d *docImpl) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize document: %v", err)
	}
	return buf.Bytes(), nil
}

func (d *docImpl) BlobElements() []IBlobElement {
	var els []IBlobElement
	// the root itself may be a blob element (single-blob documents)
	if d.doc.Root().Tag == blobElementTag {
		els = append(els, &blobElement{el: d.doc.Root()})
	}
	for _, e := range d.doc.Root().FindElements(".//" + blobElementTag) {
		els = append(els, &blobElement{el: e})
	}
	return els
}

// --------------------------------------------------------------------------
// Blob Element Implementation
// --------------------------------------------------------------------------

type blobElement struct {
	el *etree.Element
}

func (b *blobElement) Name() string {
	if a := b.el.SelectAttr("name"); a != nil {
		return a.Value
	}
	return ""
}

func (b *blobElement) IsAttached() bool {
	a := b.el.SelectAttr("attached")
	return a != nil && a.Value == "true"
}

func (b *blobElement) SetAttached(attached bool) {
	if attached {
		b.el.CreateAttr("attached", "true")
		return
	}
	b.el.RemoveAttr("attached")
}

func (b *blobElement) DeclaredSize() (int, bool) {
	a := b.el.SelectAttr("size")
	if a == nil {
		return 0, false
	}
	size, err := strconv.Atoi(a.Value)
	if err != nil || size < 0 {
		return 0, false
	}
	return size, true
}

func (b *blobElement) SetDeclaredSize(size int) {
	b.el.CreateAttr("size", strconv.Itoa(size))
}

func (b *blobElement) SetEncLen(n int) {
	if n < 0 {
		b.el.RemoveAttr("enclen")
		return
	}
	b.el.CreateAttr("enclen", strconv.Itoa(n))
}

func (b *blobElement) Body() []byte {
	return []byte(b.el.Text())
}

func (b *blobElement) SetBody(body []byte) {
	b.el.SetText(string(body))
}

// --------------------------------------------------------------------------
// Placeholder Offsets
// --------------------------------------------------------------------------

// PlaceholderOffsets locates the byte offsets of every occurrence of the
// placeholder marker in a serialized skeleton. The marker must consist of
// characters the XML writer emits verbatim (letters, digits, dashes), or it
// will not survive serialization. It errs if the count does not match
// expected - a mismatch means the marker collided with document content and
// the skeleton cannot be split safely.
func PlaceholderOffsets(skeleton, marker []byte, expected int) ([]int, error) {
	if len(marker) == 0 {
		return nil, fmt.Errorf("placeholder marker is empty")
	}

	offsets := make([]int, 0, expected)
	for i := 0; i+len(marker) <= len(skeleton); {
		j := bytes.Index(skeleton[i:], marker)
		if j < 0 {
			break
		}
		offsets = append(offsets, i+j)
		i += j + len(marker)
	}
	if len(offsets) != expected {
		return nil, fmt.Errorf("expected %d placeholder markers in skeleton, found %d", expected, len(offsets))
	}
	return offsets, nil
}
