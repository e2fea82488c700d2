// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tomtom215/tenpo/internal/api"
	"github.com/tomtom215/tenpo/internal/authflow"
	"github.com/tomtom215/tenpo/internal/backend"
	"github.com/tomtom215/tenpo/internal/captcha"
	"github.com/tomtom215/tenpo/internal/config"
	"github.com/tomtom215/tenpo/internal/events"
	"github.com/tomtom215/tenpo/internal/guard"
	"github.com/tomtom215/tenpo/internal/logging"
	"github.com/tomtom215/tenpo/internal/routes"
	"github.com/tomtom215/tenpo/internal/session"
	"github.com/tomtom215/tenpo/internal/supervisor"
	"github.com/tomtom215/tenpo/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logging is not configured yet
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("upstream", cfg.Server.UpstreamURL).
		Bool("captcha", cfg.Features.CaptchaEnabled).
		Bool("analytics", cfg.Features.AnalyticsEnabled).
		Bool("showcase", cfg.Features.ShowcaseEnabled).
		Msg("Starting Tenpo edge service")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		logging.Fatal().Err(err).Msg("Edge service failed")
	}
	logging.Info().Msg("Application stopped gracefully")
}

// run wires every component and serves until ctx is canceled.
func run(ctx context.Context, cfg *config.Config) error {
	client, err := backend.New(&backend.Config{
		URL:                cfg.Backend.URL,
		AnonKey:            cfg.Backend.AnonKey,
		Timeout:            cfg.Backend.Timeout,
		RateLimit:          cfg.Backend.RateLimit,
		RateBurst:          cfg.Backend.RateBurst,
		BreakerMaxFailures: cfg.Backend.BreakerMaxFailures,
		BreakerTimeout:     cfg.Backend.BreakerTimeout,
	})
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}

	sessions, err := session.NewManager(&session.Config{
		AccessCookie:  cfg.Session.AccessCookie,
		RefreshCookie: cfg.Session.RefreshCookie,
		Secure:        cfg.Session.Secure,
		Domain:        cfg.Session.Domain,
		MaxAge:        cfg.Session.MaxAge,
		RefreshLeeway: cfg.Session.RefreshLeeway,
		JWTSecret:     cfg.Backend.JWTSecret,
		EncryptionKey: cfg.Session.EncryptionKey,
	}, client)
	if err != nil {
		return fmt.Errorf("session manager: %w", err)
	}

	roleStack, err := initRoleCache(ctx, &cfg.Cache, client)
	if err != nil {
		return err
	}
	defer roleStack.close()

	store, err := initFlowStore(&cfg.Flow)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close flow store")
		}
	}()

	verifier := captcha.NewVerifier(&captcha.Config{
		Enabled:   cfg.Features.CaptchaEnabled,
		SiteKey:   cfg.Captcha.SiteKey,
		SecretKey: cfg.Captcha.SecretKey,
		VerifyURL: cfg.Captcha.VerifyURL,
		Timeout:   cfg.Captcha.Timeout,
	})
	if err := verifier.CheckConfig(); err != nil {
		// The widget reports the misconfiguration; sign-in stays blocked.
		logging.Warn().Err(err).Msg("Captcha is enabled but not configured")
	}

	publisher := events.NewPublisher(cfg.Features.AnalyticsEnabled)
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close event publisher")
		}
	}()

	resolver := authflow.NewResolver(client, roleStack.fetcher)

	flowCfg := &authflow.ServiceConfig{
		Backend:          client,
		Store:            store,
		Resolver:         resolver,
		Captcha:          verifier,
		Publisher:        publisher,
		CaptchaEnabled:   verifier.Enabled(),
		TTL:              cfg.Flow.TTL,
		ResetRedirectURL: resetRedirectURL(cfg.Server.PublicURL),
	}
	if roleStack.invalidator != nil {
		flowCfg.Roles = roleStack.invalidator
	}
	flows, err := authflow.NewService(flowCfg)
	if err != nil {
		return fmt.Errorf("flow service: %w", err)
	}

	handler, err := api.NewHandler(&api.HandlerConfig{
		Flows:          flows,
		Resolver:       resolver,
		Sessions:       sessions,
		Backend:        client,
		Captcha:        verifier,
		Features:       cfg.Features,
		OAuthProviders: cfg.Backend.OAuthProviders,
		PublicURL:      cfg.Server.PublicURL,
		FlowCookie:     cfg.Flow.CookieName,
		FlowTTL:        cfg.Flow.TTL,
		SecureCookie:   cfg.Session.Secure,
	})
	if err != nil {
		return fmt.Errorf("api handler: %w", err)
	}

	proxy, err := api.NewUpstreamProxy(cfg.Server.UpstreamURL)
	if err != nil {
		return fmt.Errorf("upstream proxy: %w", err)
	}

	table := routes.DefaultTable()
	policy := guard.DefaultPolicy(table, cfg.Features)
	g := guard.New(policy, table, sessions, roleStack.fetcher, api.NotFoundHandler(proxy))
	logging.Info().Strs("clauses", policy.Names()).Msg("Route guard configured")

	router := api.NewRouter(handler, api.NewChiMiddlewareFromConfig(&cfg.Security), g, proxy)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Bridges zerolog to slog for sutureslog
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	tree.AddAPIService(services.NewHTTPServerService(server, addr, cfg.Server.ShutdownTimeout))

	if publisher.Enabled() {
		tree.AddMessagingService(events.NewConsumer(publisher, nil))
		logging.Info().Msg("Auth event consumer added to supervisor tree")
	}

	tasks := []services.Task{services.FlowCleanupTask(store)}
	if roleStack.memory != nil {
		tasks = append(tasks, services.CacheCleanupTask("role-cache", roleStack.memory))
	}
	tree.AddMaintenanceService(services.NewMaintenanceService(cfg.Flow.CleanupInterval, tasks...))

	logging.Info().Str("addr", addr).Msg("Starting supervisor tree...")
	err = tree.Serve(ctx)

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}
	return nil
}

// resetRedirectURL is where recovery emails send the browser. The callback
// exchanges the code, then the flow resumes in reset-password mode.
func resetRedirectURL(publicURL string) string {
	if publicURL == "" {
		return ""
	}
	return strings.TrimRight(publicURL, "/") + "/auth/callback?next=/reset-password"
}
