package main

import (
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"medremind/internal/app"
	"medremind/internal/config"
	"medremind/internal/ratelimit"
	"medremind/internal/server"
	"medremind/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		JWTSecret:   cfg.JWTSecret,
		SessionTTL:  sessionTTL,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	var registerLimiter, loginLimiter *ratelimit.FixedWindowLimiter
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		registerLimit := cfg.RegisterRateLimitPerMinute
		if registerLimit <= 0 {
			registerLimit = 5
		}
		loginLimit := cfg.LoginRateLimitPerMinute
		if loginLimit <= 0 {
			loginLimit = 10
		}
		registerLimiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "medremind:ratelimit:register", registerLimit, time.Minute)
		if err != nil {
			log.Fatalf("failed to init register limiter: %v", err)
		}
		loginLimiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "medremind:ratelimit:login", loginLimit, time.Minute)
		if err != nil {
			log.Fatalf("failed to init login limiter: %v", err)
		}
	} else {
		slog.Warn("redis not configured, auth rate limiting disabled")
	}

	httpServer := server.New(server.Config{
		App:             appCore,
		RegisterLimiter: registerLimiter,
		LoginLimiter:    loginLimiter,
	})
	handler := util.WithCORS(util.WithSecurityHeaders(util.WithRequestID(util.WithRequestLog(httpServer.Router()))))

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
