package debug

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/cloudwego/eino-ext/devops"

	"github.com/dyike/BriefCast/config"
)

// Init starts the eino visual debug server when EINO_DEBUG_ENABLED is
// set and returns its URL. Disabled debugging returns "".
func Init(ctx context.Context, cfg *config.Config) (string, error) {
	if !cfg.EinoDebugEnabled {
		return "", nil
	}
	port := cfg.EinoDebugPort
	if port <= 0 {
		port = 52538
	}
	if err := devops.Init(ctx, devops.WithDevServerPort(strconv.Itoa(port))); err != nil {
		return "", fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}
	url := fmt.Sprintf("http://localhost:%d", port)
	log.Printf("[EinoDebug] debug server at %s", url)
	return url, nil
}
