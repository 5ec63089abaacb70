package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/apierror"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/credentials"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/handler"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/provider"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/provider/google"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/provider/keycloak"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/resolver"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/token"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/authz"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/config"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/csrf"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/logger"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/middleware"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/ratelimit"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/session"
)

func rateLimitClasses(limits []config.RouteLimit) []ratelimit.RouteClass {
	classes := make([]ratelimit.RouteClass, 0, len(limits))
	for _, rl := range limits {
		classes = append(classes, ratelimit.RouteClass{
			Name:     rl.Class,
			Prefixes: rl.Prefixes,
			Rule:     ratelimit.Rule{Limit: rl.Limit, Window: rl.Window},
		})
	}
	return classes
}

// setupProviders registers only the identity providers that are configured.
func setupProviders(ctx context.Context, cfg config.Config) (*provider.Registry, error) {
	var list []provider.OAuthProvider

	if cfg.GoogleClientID != "" {
		p, err := google.New(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		if err != nil {
			return nil, fmt.Errorf("app: google provider: %w", err)
		}
		list = append(list, p)
	}

	if cfg.KeycloakIssuer != "" {
		p, err := keycloak.New(ctx, cfg.KeycloakIssuer, cfg.KeycloakClientID, cfg.KeycloakRedirectURL, cfg.KeycloakPublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("app: keycloak provider: %w", err)
		}
		list = append(list, p)
	}

	return provider.NewRegistry(list...), nil
}

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {
	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	csrfService, err := csrf.NewService(cfg.CSRFSecret)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	tokens, err := token.NewIssuer(cfg.SessionSecret)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	registry, err := setupProviders(ctx, cfg)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	sessionStore := session.NewStore(
		infra.Sessions,
		cfg.SessionMaxAge,
		session.WithTimeout(cfg.StoreTimeout),
	)

	credentialService := credentials.NewService(
		infra.Accounts,
		credentials.WithLockout(cfg.LockoutThreshold, cfg.LockoutDuration),
		credentials.WithTimeout(cfg.StoreTimeout),
	)

	limiter := ratelimit.NewLimiter(infra.Counter, rateLimitClasses(cfg.RateLimits))
	gate := authz.NewGate(authz.DefaultRules(cfg.ProtectedAPIPrefixes))

	cookie := session.CookieOptions{
		Secure: !cfg.IsDevelopment(),
	}

	pipeline := middleware.NewPipeline(middleware.PipelineConfig{
		Limiter:               limiter,
		CSRF:                  csrfService,
		Tokens:                tokens,
		Gate:                  gate,
		Sessions:              sessionStore,
		Proxies:               proxies,
		CSRFProtectedPrefixes: cfg.CSRFProtectedPrefixes,
		LoginPath:             cfg.LoginPath,
		UnauthorizedPath:      cfg.UnauthorizedPath,
		UpdateAge:             cfg.SessionUpdateAge,
		Cookie:                cookie,
		Development:           cfg.IsDevelopment(),
	})

	authHandler := handler.NewHandler(handler.Deps{
		Providers:      registry,
		Sessions:       sessionStore,
		Resolver:       resolver.NewAccountResolver(infra.Accounts),
		Credentials:    credentialService,
		CSRF:           csrfService,
		Tokens:         tokens,
		Cookie:         cookie,
		AllowedOrigins: cfg.AllowedOrigins,
		LoginPath:      cfg.LoginPath,
		Development:    cfg.IsDevelopment(),
	})

	// ----------------------------
	// Router
	// ----------------------------

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered", map[string]any{
			"path":  c.Request.URL.Path,
			"panic": fmt.Sprint(recovered),
		})
		apierror.Write(c.Writer, apierror.Internal(fmt.Errorf("panic: %v", recovered)), cfg.IsDevelopment())
		c.Abort()
	}))
	router.Use(middleware.GinPipeline(pipeline))

	authHandler.RegisterRoutes(router)

	logger.Info("http routes registered", map[string]any{
		"providers":   registry.Names(),
		"rate_limits": len(cfg.RateLimits),
	})

	return router, infra.Close, nil
}
