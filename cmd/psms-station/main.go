package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ankkiyy/psms-demo-g2/internal/app"
	"github.com/Ankkiyy/psms-demo-g2/internal/config"
	"github.com/Ankkiyy/psms-demo-g2/internal/logging"
)

var version = "dev"

func main() {
	for _, arg := range os.Args[1:] {
		switch arg {
		case "--help", "-h":
			config.WriteHelp(os.Stdout, version)
			return
		case "--version":
			fmt.Println(version)
			return
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	runtime := app.New(cfg, logger, version)
	if err := runtime.Run(ctx); err != nil {
		logger.Error("runtime failed", "error", err)
		os.Exit(1)
	}
}
