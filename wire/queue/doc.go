// Package queue implements the per-consumer message queue and the wire
// frame codec of the hydrogen server.
//
// Every accepted connection gets one IConsumerQueue. The server broadcasts
// each incoming message to all queues; every queue independently pumps the
// message's serialized form (inline or shared-buffer, depending on the
// consumer's negotiated capability) onto its socket as a sequence of
// frames:
//
//	attach frame  - announces a shared buffer handle (unix sockets also
//	                carry the backing file descriptor as SCM_RIGHTS)
//	chunk frame   - one slice of the serialized byte stream
//	end frame     - terminates the message
//
// The queue implements serialize.IConsumer, which is how the serialization
// engine observes a consumer's backlog (for producer throttling) and wakes
// it when new chunks become available.
package queue
