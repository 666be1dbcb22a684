// Package gate is the HTTP edge of zhur.
//
// Handler turns POST /{owner}/{app} into an Invocation and maps failure
// classes onto status codes: not found 404, trapped 500, communication 502,
// unavailable 503. The same handler can be served over HTTP/3.
package gate
