// Package api exposes the memory service over HTTP.
//
// The surface mirrors the REST contract of the memory server: episode
// ingestion (fire-and-forget and synchronous), episode retrieval, entity
// edge lookup and deletion, hybrid node and fact search, and the admin
// endpoints for status and graph maintenance.
//
// # Architecture
//
// Handlers hang off the API type, which depends on a MemoryService
// interface and an injected groupqueue.Registry. Ingestion handlers never
// call the service directly: they build the episode parameters at request
// time, including the reference timestamp, and submit a deferred task to
// the group's queue so episodes within one group process strictly in
// arrival order. Retrieval and admin handlers call the service inline.
//
// Responses follow a flat JSON envelope: successes carry {message, success},
// failures carry {error, success}. Search responses add their result arrays.
//
// # Error Handling
//
// Binding and validation failures map to 400. Unknown episode and edge
// UUIDs map to 404 via graph.ErrNotFound. A full group backlog maps to 503.
// Everything else is a 500 with a detail string describing the failing
// operation.
package api
