package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	intrnl "nearcast/internal"
	"nearcast/internal/app"
)

func main() {
	addr := flag.String("addr", getEnv("NEARCAST_ADDR", ":3000"), "server listen address")
	wsPath := flag.String("path", getEnv("NEARCAST_WS_PATH", "/ws"), "websocket path")
	dbPath := flag.String("db", getEnv("NEARCAST_DB_PATH", app.DefaultDBPath()), "sqlite database path")
	secret := flag.String("jwt-secret", os.Getenv("NEARCAST_JWT_SECRET"), "secret for signing auth tokens")
	radius := flag.Float64("radius", getEnvFloat("NEARCAST_RADIUS_METERS", intrnl.DefaultRadiusMeters), "proximity radius in meters")
	stale := flag.Duration("stale-after", 5*time.Minute, "drop positions not refreshed within this window")
	logLevel := flag.String("log-level", getEnv("NEARCAST_LOG_LEVEL", "info"), "log level")
	flag.Parse()

	intrnl.ConfigureLogging(intrnl.LogConfig{Level: *logLevel})
	log := intrnl.Logger("main")

	if *secret == "" {
		log.Fatal().Msg("a jwt secret is required (set -jwt-secret or NEARCAST_JWT_SECRET)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := app.RunServer(ctx, app.ServerConfig{
		Addr:         *addr,
		WSPath:       *wsPath,
		DBPath:       *dbPath,
		JWTSecret:    *secret,
		RadiusMeters: *radius,
		StaleAfter:   *stale,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("server startup failed")
	}

	log.Info().Str("addr", handle.Addr()).Str("ws_path", *wsPath).Float64("radius_m", *radius).Msg("nearcast server listening")

	if err := handle.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}
