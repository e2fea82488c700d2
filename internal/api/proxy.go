// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package api

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/tomtom215/tenpo/internal/logging"
)

// notFoundPath is the upstream page rendered for hidden or unknown routes.
const notFoundPath = "/404"

// NewUpstreamProxy returns a reverse proxy to the page renderer.
func NewUpstreamProxy(upstreamURL string) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(upstreamURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream URL: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream URL must be absolute: %q", upstreamURL)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Upstream request failed")
			w.WriteHeader(http.StatusBadGateway)
		},
	}, nil
}

// NotFoundHandler renders the upstream 404 page in place of the requested
// path and forces a 404 status, so hidden routes are indistinguishable from
// missing ones.
func NotFoundHandler(upstream http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r2 := r.Clone(r.Context())
		r2.URL.Path = notFoundPath
		r2.URL.RawPath = ""
		r2.URL.RawQuery = ""
		r2.RequestURI = ""
		upstream.ServeHTTP(&statusOverrideWriter{ResponseWriter: w, status: http.StatusNotFound}, r2)
	})
}

// statusOverrideWriter replaces the status code written by the wrapped handler.
type statusOverrideWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusOverrideWriter) WriteHeader(int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(w.status)
}

func (w *statusOverrideWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(w.status)
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusOverrideWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
