// Package config holds the environment-driven configuration helpers shared
// by the command entry points.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv fills target from the process environment using its env struct
// tags. Commands layer flag parsing on top, so flags override whatever the
// environment supplied.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
