package binder

import "net/http"

// Query binds URL query parameters to v using query struct tags. Fields
// without a tag bind by their lowercased name; repeated parameters and
// comma-separated values both populate slice fields.
func Query(r *http.Request, v any) error {
	return bindToStruct(v, "query", r.URL.Query(), ErrFailedToParseQuery)
}
