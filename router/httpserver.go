package router

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/navidrome/goupnp-core/transport"
)

// DefaultPathPrefix is the configurable HTTP path prefix spec.md §6
// defaults to for descriptor/control/event URLs.
const DefaultPathPrefix = "/upnp"

// NewHTTPMux builds the chi router that fronts the HTTP stream
// transport: every request is translated into a transport.StreamRequest
// and handed to Router.Received, keeping routing/CORS/rate-limiting as
// ambient HTTP concerns separate from protocol decoding. SOAP control
// calls and GENA SUBSCRIBE/UNSUBSCRIBE traffic share this mux, each
// identified by path via the prefix spec.md §6 names.
func NewHTTPMux(r *Router, prefix string) http.Handler {
	// chi rejects methods it does not know with 405 before routing.
	for _, m := range []string{"SUBSCRIBE", "UNSUBSCRIBE", "NOTIFY"} {
		chi.RegisterMethod(m)
	}
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "SUBSCRIBE", "UNSUBSCRIBE", "NOTIFY"},
		AllowedHeaders: []string{"*"},
	}))
	// SOAP control is the highest-traffic, most abusable surface;
	// GENA SUBSCRIBE is comparatively rare, so it gets a tighter cap.
	mux.Route(prefix, func(sub chi.Router) {
		sub.With(httprate.LimitByIP(50, time.Second)).Post("/dev/{udn}/svc/{serviceId}/control", proxyHandler(r))
		sub.With(httprate.LimitByIP(10, time.Second)).Handle("/dev/{udn}/svc/{serviceId}/event", proxyHandler(r))
		sub.Get("/dev/{udn}/desc.xml", proxyHandler(r))
		sub.Get("/dev/{udn}/svc/{serviceId}/desc.xml", proxyHandler(r))
		sub.Post("/dev/{udn}/svc/{serviceId}/event/cb/{sid}", proxyHandler(r))
	})
	return mux
}

func proxyHandler(r *Router) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		headers := transport.NewHeader()
		for k, vs := range req.Header {
			for _, v := range vs {
				headers.Add(k, v)
			}
		}
		sreq := &transport.StreamRequest{
			Method:  req.Method,
			Path:    req.URL.Path,
			Headers: headers,
			Body:    body,
			Remote:  req.RemoteAddr,
		}

		ctx := req.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		resp := r.Received(ctx, sreq)

		for k, vs := range resp.Headers {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		status := resp.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write(resp.Body)
	}
}
