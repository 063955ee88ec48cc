// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error
// responses keyed on the error taxonomy, parameter parsing, and common
// HTTP middleware.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, data)
//	httputil.WriteCreated(w, resource)
//
// Error responses map the error's kind onto a status code and preserve the
// originating operation name in the envelope:
//
//	httputil.WriteError(w, err)
//	httputil.WriteBadRequest(w, "invalid input")
//
// # Request Parsing
//
// JSON parsing:
//
//	var req createDraftRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// Path and query parameters:
//
//	tenantID, ok := httputil.PathVarOrError(w, r, "tenant_id")
//	name := httputil.QueryString(r, "name", "")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1024*1024),
//	)
package httputil
