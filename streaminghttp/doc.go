// Package streaminghttp serves an A2A agent over net/http. One handler mounts
// both protocol bindings plus agent discovery:
//
//   - POST <endpoint>: JSON-RPC 2.0. Streaming methods answer with
//     Server-Sent Events whose data lines are JSON-RPC responses.
//   - <endpoint>/v1/...: the HTTP+JSON (REST) binding. Streaming routes
//     answer with Server-Sent Events carrying bare payloads.
//   - GET /.well-known/agent-card.json: the public AgentCard, with permissive
//     CORS. The pre-0.3 path /.well-known/agent.json is served as an alias.
//
// Construction
//
//	h, err := streaminghttp.New(
//	    "https://agents.example/a2a", // public JSON-RPC endpoint
//	    handler,                      // transport.RequestHandler
//	    agentcard.Static(card),       // discovery document
//	    streaminghttp.WithAuthenticator(authenticator),
//	)
//
// # Authentication
//
// With an authenticator configured every A2A call must present a bearer
// token. Failures are answered by the dispatcher of the binding that was
// called with 401 or 403 and an RFC 6750 WWW-Authenticate challenge. The
// agent card is always public. WithAuthorizationServer additionally
// publishes RFC 9728 protected resource metadata under
// /.well-known/oauth-protected-resource and links it from every challenge.
//
// # Streams
//
// A stream response is committed only after the handler produced its first
// event. If that first pull fails the client receives an ordinary error
// response instead. Each SSE event carries an id that increases across the
// process. Frames are flushed as they are written and writes stop as soon as
// the client disconnects.
package streaminghttp
