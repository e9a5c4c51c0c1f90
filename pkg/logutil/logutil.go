package logutil

import (
	"fmt"
	"strings"

	log "github.com/charmbracelet/log"
)

// Configure applies the requested minimum level to the default logger.
func Configure(levelRaw string) error {
	levelRaw = strings.TrimSpace(levelRaw)
	if levelRaw == "" {
		levelRaw = "info"
	}
	level, err := log.ParseLevel(levelRaw)
	if err != nil {
		return fmt.Errorf("invalid loglevel %q", levelRaw)
	}
	log.SetLevel(level)
	log.SetReportTimestamp(true)
	return nil
}
