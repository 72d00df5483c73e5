// Package binder provides type-safe HTTP request data binding.
//
// The binder package binds HTTP request data to Go structs with built-in
// size limits and strict decoding. It supports JSON request bodies and URL
// query parameters.
//
// # Basic Usage
//
//	type SearchRequest struct {
//	    Query    string   `query:"query"`
//	    GroupIDs []string `query:"group_ids"`
//	    MaxFacts int      `query:"max_facts"`
//	}
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    var req SearchRequest
//	    if err := binder.Query(r, &req); err != nil {
//	        // respond with 400
//	    }
//	}
//
// JSON bodies bind through struct json tags with strict mode enabled, so
// unknown fields are rejected:
//
//	type AddRequest struct {
//	    Name    string `json:"name"`
//	    Content string `json:"episode_body"`
//	}
//
//	var req AddRequest
//	if err := binder.JSON(r, &req); err != nil { ... }
//
// # Error Handling
//
// The package defines several error variables for common binding failures:
//
//   - ErrUnsupportedMediaType: Content type doesn't match expected type
//   - ErrFailedToParseJSON: Failed to parse JSON request body
//   - ErrFailedToParseQuery: Failed to parse query parameters
//   - ErrMissingContentType: Missing Content-Type header
//
// All errors wrap one of these sentinels, so callers can classify failures
// with errors.Is and map them to HTTP status codes.
package binder
