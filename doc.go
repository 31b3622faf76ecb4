// Package realtime implements the resilient messaging client used by the
// production floor frontends and agents. It keeps a single logical WebSocket
// connection alive across authentication, network interruption and explicit
// teardown, multiplexes channel and room subscriptions over that connection,
// and buffers outbound messages while the connection is down so they are not
// silently lost.
//
// Consumers never touch the transport directly: subscriptions, sends and
// inbound server messages all flow through the client, which surfaces every
// user-visible condition as an event.
package realtime
