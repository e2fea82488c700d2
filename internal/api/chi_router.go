// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

// Package api is the HTTP surface of the edge service: the auth widget API,
// the OAuth callback, health endpoints and the guarded proxy to the page
// renderer.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/tenpo/internal/guard"
	"github.com/tomtom215/tenpo/internal/middleware"
)

// Router assembles the HTTP routes.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	guard         *guard.Guard

	// upstream serves every page that passes the guard.
	upstream http.Handler
}

// NewRouter creates a router. A nil upstream answers guarded pages with 404.
func NewRouter(handler *Handler, chiMw *ChiMiddleware, g *guard.Guard, upstream http.Handler) *Router {
	if chiMw == nil {
		chiMw = NewChiMiddleware(nil)
	}
	if upstream == nil {
		upstream = http.HandlerFunc(http.NotFound)
	}
	return &Router{handler: handler, chiMiddleware: chiMw, guard: g, upstream: upstream}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Applied to all routes, in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered
	r.Use(middleware.PrometheusMetrics)

	// Operational endpoints
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(middleware.SecurityHeaders)
		r.Get("/healthz", router.handler.HealthLive)
		r.Get("/readyz", router.handler.HealthReady)
		r.Handle("/metrics", promhttp.Handler())
	})

	// Auth widget API
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.NoStore)

		r.Get("/config", router.handler.Config)
		r.Get("/oauth/{provider}", router.handler.OAuthStart)

		r.Route("/flow", func(r chi.Router) {
			r.Get("/", router.handler.FlowState)
			r.Get("/invite/{token}", router.handler.FlowInvite)
			r.Post("/navigate", router.handler.FlowNavigate)
			r.Post("/captcha", router.handler.FlowCaptcha)

			// Commands that reach the backend with credentials or send email
			r.Group(func(r chi.Router) {
				r.Use(router.chiMiddleware.RateLimitAuth())
				r.Post("/login", router.handler.FlowLogin)
				r.Post("/signup", router.handler.FlowSignup)
				r.Post("/reset-request", router.handler.FlowResetRequest)
				r.Post("/verify", router.handler.FlowVerify)
				r.Post("/resend", router.handler.FlowResend)
				r.Post("/reset-password", router.handler.FlowResetPassword)
				r.Post("/invite", router.handler.FlowAcceptInvite)
			})
		})
	})

	// Browser redirects
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitAuth())
		r.Use(middleware.SecurityHeaders)
		r.Get("/auth/callback", router.handler.AuthCallback)
		r.Post("/auth/signout", router.handler.SignOut)
	})

	// Everything else is a page: guard it, then hand it to the renderer.
	pages := router.upstream
	if router.guard != nil {
		pages = router.guard.Middleware(pages)
	}
	r.NotFound(pages.ServeHTTP)
	r.MethodNotAllowed(pages.ServeHTTP)

	return r
}
