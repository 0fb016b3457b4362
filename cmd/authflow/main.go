package main

import (
	"context"
	"fmt"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cleevio/authflow"
	"github.com/cleevio/authflow/api"
	"github.com/cleevio/authflow/backend/local"
	"github.com/cleevio/authflow/backend/rest"
	"github.com/cleevio/authflow/config"
	"github.com/cleevio/authflow/flow"
	"github.com/cleevio/authflow/logger"
	"github.com/cleevio/authflow/provider"
	"github.com/cleevio/authflow/session"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger.InitLogger(cfg.LogLevel)
	defer logger.Log.Sync()

	logger.Log.Info("Starting Authflow Service",
		zap.Int("port", cfg.Port),
		zap.String("backend", cfg.Backend),
	)

	auth, err := buildAuthenticator(cfg)
	if err != nil {
		logger.Log.Fatal("failed to initialize backend", zap.Error(err))
	}

	// Server-side flows carry no UI. Providers that insist on a presentation
	// context get this stand-in.
	auth.SetPresentationContextProvider(func() provider.PresentationContext {
		return "headless"
	})

	h := api.NewHandler(auth)
	h.SetLogger(logger.Log)
	registerProviders(h, cfg)

	// Setup Echo
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Routes
	g := e.Group("/api/v1")
	h.RegisterRoutes(g)

	logger.Log.Info("Server is starting", zap.Int("port", cfg.Port))
	if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Log.Fatal("server failed to start", zap.Error(err))
	}
}

func buildAuthenticator(cfg *config.Config) (*flow.Authenticator, error) {
	switch cfg.Backend {
	case "rest":
		auth, _, err := authflow.NewREST(rest.Config{
			APIKey:   cfg.APIKey,
			Endpoint: cfg.Endpoint,
		})
		return auth, err

	default:
		store, err := local.OpenStore(cfg.DBType, cfg.DSN)
		if err != nil {
			return nil, err
		}
		sess := session.NewHandle()
		b := local.New(store, sess, local.Config{Secret: cfg.TokenSecret})
		b.SetLogger(logger.Log)
		if cfg.RedisAddr != "" {
			client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			if err := client.Ping(context.Background()).Err(); err != nil {
				return nil, fmt.Errorf("redis unreachable: %w", err)
			}
			b.SetLockoutStore(local.NewRedisLockoutStore(client, ""))
			logger.Log.Info("using Redis lockout store", zap.String("addr", cfg.RedisAddr))
		}
		return authflow.New(b, sess), nil
	}
}

func registerProviders(h *api.Handler, cfg *config.Config) {
	ctx := context.Background()

	if p, ok := cfg.Providers["google"]; ok && p.ClientID != "" {
		gp, err := provider.NewGoogleProvider(ctx, p.ClientID, nil)
		if err != nil {
			logger.Log.Error("google provider init failed", zap.Error(err))
		} else {
			h.RegisterIDP("google", func(t api.IDPTokens) provider.CredentialProvider {
				return gp.WithSource(provider.StaticGoogleTokens(t.IDToken, t.AccessToken))
			})
			logger.Log.Info("registered provider", zap.String("provider", "google"))
		}
	}

	if p, ok := cfg.Providers["apple"]; ok && p.ClientID != "" {
		ap, err := provider.NewAppleProvider(ctx, p.ClientID, nil)
		if err != nil {
			logger.Log.Error("apple provider init failed", zap.Error(err))
		} else {
			h.RegisterIDP("apple", func(t api.IDPTokens) provider.CredentialProvider {
				return ap.WithSource(provider.StaticAppleTokens(provider.AppleTokens{
					IdentityToken: t.IDToken,
					RawNonce:      t.RawNonce,
				}))
			})
			logger.Log.Info("registered provider", zap.String("provider", "apple"))
		}
	}

	if p, ok := cfg.Providers["facebook"]; ok && p.ClientID != "" {
		fp := provider.NewFacebookProvider(p.ClientID, p.ClientSecret, p.RedirectURL, nil)
		h.RegisterIDP("facebook", func(t api.IDPTokens) provider.CredentialProvider {
			return fp.WithSource(provider.StaticFacebookTokens(t.AccessToken))
		})
		logger.Log.Info("registered provider", zap.String("provider", "facebook"))
	}
}
