package config

import (
	"flag"
)

// applyFlags overlays command-line flags on top of the current values.
// The -e/-env-file flag is declared here too so the shared flag set does
// not reject it; its value was already consumed by flagx.EnvFileFlag.
func applyFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("barkbot", flag.ContinueOnError)

	var envFile string
	fs.StringVar(&envFile, "e", "", "path to .env file (short)")
	fs.StringVar(&envFile, "env-file", "", "path to .env file")

	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "postgres DSN")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "redis address")
	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "http listen address")
	fs.StringVar(&cfg.SolanaRPCEndpoint, "rpc", cfg.SolanaRPCEndpoint, "default solana rpc endpoint")
	fs.StringVar(&cfg.JupiterBaseURL, "aggregator", cfg.JupiterBaseURL, "aggregator base url")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	return fs.Parse(args)
}
