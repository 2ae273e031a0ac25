// Package transport maps A2A requests onto a RequestHandler for the two
// wire bindings: JSON-RPC 2.0 and HTTP+JSON (REST).
//
// Both dispatchers are host-agnostic. A host adapts its request to Request
// and its response to Responder; package streaminghttp does this for
// net/http.
//
// # Responses
//
// Every operation yields a tagged Result. Single results are written as one
// JSON body. Stream results are drained with stream.ProcessStream: if the
// first event cannot be produced the failure is answered as an ordinary
// error response, otherwise the response commits to an event stream and a
// later failure becomes a terminal "error" frame.
//
// # Extensions
//
// Each request gets an a2a.CallContext built from the X-A2A-Extensions
// header and the caller resolved by the configured UserResolver. Extensions
// the handler activates are echoed in the same header on the response.
package transport
