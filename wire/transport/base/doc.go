// Package base provides the foundation for consumer-facing transports of
// the hydrogen server, implementing the accept loop and the delivery-mode
// handshake independent of the specific network protocol (TCP, Unix
// sockets, etc.). It serves as a base layer that is extended with
// protocol-specific connectors.
//
// The package focuses on:
//   - Protocol-agnostic listener and handshake implementation
//   - Delivery-mode negotiation: a consumer asks for inline or shared-buffer
//     delivery, and the transport grants shared buffers only where handles
//     are meaningful on the consumer's side (same-host unix sockets)
//   - Transport-specific socket tuning through the connector's
//     UpgradeConnection hook
//
// Key Components:
//
//   - IServerConnector: Interface for protocol-specific operations that
//     allows extending the base transport with different network protocols.
//
//   - serverTransport: Core implementation that accepts connections, runs
//     the handshake and hands negotiated connections to the registered
//     AcceptHandler (the server wires this to a consumer queue).
//
//   - ClientHandshake: The client side of the mode negotiation, used by the
//     watch command and by consumer implementations.
package base
