package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/capcom6/nfc-watch/internal/config"
	"github.com/capcom6/nfc-watch/internal/metrics"
	"github.com/capcom6/nfc-watch/internal/supervisor"
	"github.com/hashicorp/logutils"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Println("[WARN] Can't load .env:", err)
	}

	cli.VersionPrinter = func(*cli.Command) {
		fmt.Println(config.VersionInfo())
	}

	cmd := &cli.Command{
		Name:    "nfc-watch",
		Usage:   "keep file and folder names in Unicode NFC",
		Version: config.Version(),
		Flags:   config.Flags(),
		Action:  run,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatalln("[ERROR]", err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.FromCommand(cmd)
	if err != nil {
		return err
	}
	setUpLogging(cfg)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg := &sync.WaitGroup{}
	if cfg.MetricsAddress != "" {
		if serveErr := metrics.Serve(ctx, wg, cfg.MetricsAddress); serveErr != nil {
			return serveErr
		}
	}

	log.Println("[INFO] Watching...")
	err = supervisor.New(cfg.ConfigPath, supervisor.Options{}).Run(ctx)

	cancel()
	wg.Wait()

	if err != nil {
		return err
	}

	log.Println("[INFO] Bye!")
	return nil
}

func setUpLogging(cfg config.Config) {
	logLevel := "INFO"
	if cfg.Debug {
		logLevel = "DEBUG"
	}

	filter := logutils.LevelFilter{
		Levels:   []logutils.LogLevel{"DEBUG", "INFO", "WARN", "ERROR"},
		MinLevel: logutils.LogLevel(logLevel),
		Writer:   os.Stdout,
	}

	log.SetOutput(&filter)
}
