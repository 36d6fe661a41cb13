// Package ahahttp drives the AHA HTTP interface of the router, the
// query-parameter command surface used for home automation devices.
//
// Commands are plain GET requests against a fixed endpoint carrying a
// session id, the command name and an optional device identifier (AIN).
// The session id is acquired lazily through the challenge-response
// login handshake and renewed transparently once when the router
// rejects it. Responses are returned untouched; interpreting the
// payload is the caller's job.
package ahahttp
