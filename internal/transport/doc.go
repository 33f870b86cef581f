// Package transport delivers raw text payloads to the robot controller.
//
// Every Send opens its own TCP connection, writes the payload and closes the
// connection again. Nothing is read back: success means the bytes reached the
// socket, not that the controller executed them. There is no connection reuse
// and no retry.
package transport
