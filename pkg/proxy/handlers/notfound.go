package handlers

import (
	"net/http"

	"mercator-hq/pricerelay/pkg/proxy"
)

// NotFoundHandler answers unknown routes with a JSON 404.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = proxy.WriteErrorResponse(w, proxy.NewErrorResponse(
			"no route for "+r.URL.Path,
			proxy.ErrorTypeNotFound,
			"route_not_found",
		))
	}
}
