package main

import (
	"log/slog"

	"github.com/BioHazard786/webmeet/internal/cmd"
	"github.com/BioHazard786/webmeet/internal/logging"
)

func main() {
	// Logs go to stderr; keep them quiet under the call screen unless
	// LOG_LEVEL asks for more.
	logging.Init("", slog.LevelError)
	cmd.Execute()
}
