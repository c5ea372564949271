package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"nearcast/internal/app"
)

func main() {
	defaultServer := envOrDefault("NEARCAST_SERVER", "http://localhost:3000")
	defaultEmail := envOrDefault("NEARCAST_EMAIL", "")

	serverURL := flag.String("server", defaultServer, "backend base URL (e.g., http://localhost:3000)")
	email := flag.String("email", defaultEmail, "account email for login")
	password := flag.String("password", os.Getenv("NEARCAST_PASSWORD"), "account password for login")
	lat := flag.Float64("lat", envFloat("NEARCAST_LAT", 40.7580), "starting latitude")
	lon := flag.Float64("lon", envFloat("NEARCAST_LON", -73.9855), "starting longitude")
	flag.Parse()

	cfg := app.ClientConfig{
		ServerURL: *serverURL,
		Email:     *email,
		Password:  *password,
		Latitude:  *lat,
		Longitude: *lon,
	}

	if err := app.RunClient(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
