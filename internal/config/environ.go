package config

import (
	"fmt"
	"os"
	"strings"
)

// BuildEnviron starts from the current process environment, applies
// AddPath/Env overrides from cfg, and layers extra on top (used by the
// session controller to inject the NOTCL_PIPE_* and NOTCL_DEBUG_TCL
// variables the child expects).
func BuildEnviron(cfg SessionConfig, extra map[string]string) []string {
	env := os.Environ()

	if len(cfg.AddPath) > 0 {
		currentPath := os.Getenv("PATH")
		for _, p := range cfg.AddPath {
			currentPath = fmt.Sprintf("%s:%s", currentPath, p)
		}
		filtered := make([]string, 0, len(env))
		for _, e := range env {
			if !strings.HasPrefix(e, "PATH=") {
				filtered = append(filtered, e)
			}
		}
		env = filtered
		env = append(env, fmt.Sprintf("PATH=%s", currentPath))
	}

	for k, v := range cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	return env
}
