package config

import (
	"fmt"
	"os"
)

// Exitf prints the formatted message to stderr and exits with status 1.
// Mains call it for configuration failures that happen before logging and
// telemetry are set up.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
