package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// applyEnv overlays values from the process environment.
func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	setString("DATABASE_DSN", &cfg.DatabaseDSN)
	setString("REDIS_ADDR", &cfg.RedisAddr)
	setString("REDIS_PASSWORD", &cfg.RedisPassword)
	setString("HTTP_ADDR", &cfg.HTTPAddr)
	setString("JWT_SECRET", &cfg.JWTSecret)
	setString("KEY_PASSPHRASE", &cfg.Passphrase)
	setString("KEY_SALT", &cfg.KeySalt)
	setString("TELEGRAM_TOKEN", &cfg.TelegramToken)
	setString("JUPITER_BASE_URL", &cfg.JupiterBaseURL)
	setString("JUPITER_API_KEY", &cfg.JupiterAPIKey)
	setString("SOLANA_RPC_ENDPOINT", &cfg.SolanaRPCEndpoint)
	setString("DEFAULT_PRIORITY_TIER", &cfg.DefaultPriorityTier)
	setString("LOG_LEVEL", &cfg.LogLevel)

	if v, ok := os.LookupEnv("REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		cfg.RedisDB = n
	}
	if v, ok := os.LookupEnv("TOKEN_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TOKEN_TTL: %w", err)
		}
		cfg.TokenTTL = d
	}
	if v, ok := os.LookupEnv("VERIFICATION_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("VERIFICATION_TTL: %w", err)
		}
		cfg.VerificationTTL = d
	}
	if v, ok := os.LookupEnv("DEFAULT_SLIPPAGE_BPS"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("DEFAULT_SLIPPAGE_BPS: %w", err)
		}
		cfg.DefaultSlippageBPS = n
	}
	if v, ok := os.LookupEnv("RATE_LIMIT_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimitRPS = f
	}
	if v, ok := os.LookupEnv("RATE_LIMIT_BURST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_BURST: %w", err)
		}
		cfg.RateLimitBurst = n
	}

	return nil
}
