package document

// --------------------------------------------------------------------------
// Document Interface
// --------------------------------------------------------------------------

// IDocument is the property-update document model consumed by the
// serialization engine. The engine never manipulates XML itself - it only
// clones documents, rewrites blob elements through IBlobElement and asks for
// full serializations.
type IDocument interface {
	// Name returns the root element name (e.g. "setBLOBVector").
	Name() string

	// Attr returns the value of an attribute on the root element, or "".
	Attr(key string) string

	// Clone returns a deep copy of the document. Mutations through the
	// copy's blob elements never affect the original.
	Clone() IDocument

	// Serialize produces the full wire form of the document.
	Serialize() ([]byte, error)

	// BlobElements returns the blob-bearing elements in document order.
	BlobElements() []IBlobElement
}

// IBlobElement is one blob-bearing element of a document. A blob either
// travels out-of-band (attached="true" plus a declared decoded size, empty
// body) or inline (base64 text body, no attached attribute).
type IBlobElement interface {
	// Name returns the element's name attribute.
	Name() string

	// IsAttached reports whether the element references an out-of-band
	// shared buffer.
	IsAttached() bool

	// SetAttached sets or removes the attached marker.
	SetAttached(attached bool)

	// DeclaredSize returns the declared decoded payload size from the size
	// attribute. ok is false if the attribute is absent or malformed.
	DeclaredSize() (size int, ok bool)

	// SetDeclaredSize sets the size attribute.
	SetDeclaredSize(size int)

	// SetEncLen sets the enclen attribute (length of the inline base64
	// text). n < 0 removes the attribute.
	SetEncLen(n int)

	// Body returns the element's raw text body.
	Body() []byte

	// SetBody replaces the element's text body. nil clears it.
	SetBody(body []byte)
}
