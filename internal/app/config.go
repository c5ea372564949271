package app

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// ServerConfig defines how the HTTP/WebSocket backend should run.
type ServerConfig struct {
	Addr          string
	WSPath        string
	DBPath        string
	JWTSecret     string
	RadiusMeters  float64
	StaleAfter    time.Duration
	AuthRateLimit int // requests per minute per IP on the auth endpoints
}

// ClientConfig defines the parameters the radar TUI client needs.
type ClientConfig struct {
	ServerURL string // http(s) base URL of the backend
	Email     string
	Password  string
	Latitude  float64
	Longitude float64
}

// DefaultDBPath returns a per-user data path for the bundled SQLite file.
func DefaultDBPath() string {
	if env := os.Getenv("NEARCAST_DB_PATH"); env != "" {
		return env
	}
	if env := os.Getenv("NEARCAST_DATA_DIR"); env != "" {
		return filepath.Join(env, "nearcast.db")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "nearcast", "nearcast.db")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Nearcast", "nearcast.db")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "Nearcast", "nearcast.db")
		}
		return filepath.Join(home, ".local", "share", "nearcast", "nearcast.db")
	}
	return filepath.Join(".", ".nearcast", "nearcast.db")
}

// NormalizeWSPath guarantees the websocket path starts with '/' and falls
// back to /ws when empty.
func NormalizeWSPath(path string) string {
	if path == "" {
		return "/ws"
	}
	if path[0] != '/' {
		return "/" + path
	}
	return path
}
