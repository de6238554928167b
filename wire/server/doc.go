// Package server ties the wire layer together: it reads property-update
// documents from the driver feed, turns each one into a message and
// broadcasts it to every connected consumer queue.
//
// Consumers arrive through the registered transports (tcp, unix). Each
// accepted connection becomes one queue.IConsumerQueue; the serialization
// engine then produces the inline or shared-buffer rendition of every
// message on demand, shared between all consumers that need the same form.
package server
