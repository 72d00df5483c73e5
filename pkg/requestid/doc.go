// Package requestid tags HTTP requests with a correlation identifier.
//
// The middleware reuses a valid inbound X-Request-ID header or generates a
// fresh UUID, stores the result in the request context, and echoes it back
// in the response. FromContext reads the ID anywhere downstream, and
// LoggerExtractor plugs it into the logger package so log lines written
// with a request's context carry it automatically.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//
//	r := chi.NewRouter()
//	r.Use(requestid.Middleware)
//
// # Error Handling
//
// The package returns no errors. An invalid or missing inbound ID is
// silently replaced with a generated UUID.
package requestid
