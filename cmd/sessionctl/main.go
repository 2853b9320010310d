package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	sessionctl "github.com/dugoutlabs/dugout/internal/cmd/sessionctl"
	platformcmd "github.com/dugoutlabs/dugout/internal/platform/cmd"
	"github.com/dugoutlabs/dugout/internal/platform/config"
)

func main() {
	cfg, err := sessionctl.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[SESSIONCTL] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceSessionctl, func(ctx context.Context) error {
		return sessionctl.Run(ctx, cfg, flag.CommandLine.Args(), os.Stdout)
	})
	if err != nil {
		log.Fatalf("sessionctl: %v", err)
	}
}
