// Package soap builds, sends and decodes the SOAP requests behind every
// TR-064 action call.
//
// It owns the two halves of the wire contract: datatype coercion between
// SOAP primitive type names and Go values (Encode/Decode), and the call
// engine that validates arguments against the capability model, renders
// the envelope, posts it to the service control URL and pairs the response
// values back to the declared output arguments by element name.
//
// The engine is stateless apart from the *http.Client handed in by the
// connection facade; reusing that pooled client across calls is a
// deliberate performance contract, TLS session setup per call would
// dominate the call time.
package soap
