// Package httputil holds the JSON response helpers, query parsing and
// middleware shared by the docsearch HTTP API.
//
// Every error reply has the shape {"error": "..."}:
//
//	httputil.WriteError(w, http.StatusBadRequest, err.Error())
//	httputil.WriteSuccess(w, resp)
//
// The server wraps its router as:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//		httputil.TimeoutMiddleware(10*time.Second),
//	)(router)
package httputil
