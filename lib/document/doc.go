// Package document implements the property-update document model consumed by
// the serialization engine. Documents are XML element trees in the
// INDI/HYDROGEN wire shape: a set*Vector element containing zero or more
// oneBLOB elements.
//
// A oneBLOB element is in exactly one of three states:
//
//   - attached: attached="true" plus a declared size attribute, empty body -
//     the payload travels out-of-band as a shared buffer.
//   - inline: no attached attribute, body is the base64 text of the payload
//     (optionally with an enclen attribute).
//   - empty: neither - the element carries no payload.
//
// The package wraps github.com/beevik/etree; the serialization engine only
// sees the IDocument/IBlobElement interfaces, so the XML library never leaks
// into the core.
package document
