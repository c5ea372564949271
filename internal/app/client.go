package app

import (
	"errors"

	intrnl "nearcast/internal"
)

// RunClient launches the Bubble Tea radar TUI with the provided
// configuration.
func RunClient(cfg ClientConfig) error {
	if cfg.ServerURL == "" {
		return errors.New("server URL is required")
	}
	return intrnl.RunClient(cfg.ServerURL, cfg.Email, cfg.Password, cfg.Latitude, cfg.Longitude)
}
