// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

/*
Package main is the entry point for the Tenpo edge auth service.

The service sits in front of the page renderer. Every page request passes the
route guard, which resolves the backend session from cookies and decides
whether to allow, redirect or 404 it. The auth widget talks to the flow API
under /api/auth, and OAuth providers return to /auth/callback.

# Application Architecture

	RootSupervisor ("tenpo")
	├── APISupervisor ("api-layer")
	│   └── HTTP Server
	├── MessagingSupervisor ("messaging-layer")
	│   └── Auth event consumer (ENABLE_ANALYTICS=true)
	└── MaintenanceSupervisor ("maintenance-layer")
	    └── Flow store and role cache cleanup

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config file and environment
 2. Logging: zerolog with JSON or console output
 3. Backend client: auth and data API with rate limiter and circuit breaker
 4. Sessions: cookie manager with refresh and optional cookie encryption
 5. Role cache: Redis when REDIS_URL is set, in-process otherwise
 6. Flow store: in-memory or Badger
 7. Flow service, captcha verifier and event publisher
 8. Guard and upstream proxy
 9. Supervisor tree and HTTP server

# Configuration

Priority: environment variables > config file > defaults.

	# Server
	HTTP_PORT=8080
	UPSTREAM_URL=http://localhost:3000   # page renderer
	PUBLIC_URL=https://tenpo.example     # OAuth and email link origin
	ENVIRONMENT=production

	# Backend
	SUPABASE_URL=https://project.supabase.co
	SUPABASE_ANON_KEY=<key>
	SUPABASE_JWT_SECRET=<secret>         # optional local token verification

	# Feature flags
	ENABLE_CAPTCHA=true
	ENABLE_ANALYTICS=false
	ENABLE_SHOWCASE=false

	# Turnstile
	TURNSTILE_SITE_KEY=<key>
	TURNSTILE_SECRET_KEY=<secret>

	# Storage
	FLOW_STORE=memory                    # memory or badger
	FLOW_STORE_PATH=/data/flows
	REDIS_URL=redis://localhost:6379/0

# Signals

SIGINT and SIGTERM cancel the root context. The HTTP server drains
connections for SHUTDOWN_TIMEOUT before the process exits.
*/
package main
