package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/capcom6/nfc-watch/internal/nfc"
	"github.com/hashicorp/logutils"
)

type patterns []string

func (p *patterns) String() string {
	return strings.Join(*p, ",")
}

func (p *patterns) Set(value string) error {
	*p = append(*p, value)
	return nil
}

func main() {
	isDebug := flag.Bool("debug", false, "enable debug logging")
	exclude := patterns{}
	flag.Var(&exclude, "exclude", "glob of paths to skip, relative to each folder (repeatable)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-debug] [-exclude GLOB]... DIR...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	setUpLogging(*isDebug)

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	failed := false
	for _, dir := range flag.Args() {
		renamed, err := nfc.New(dir, nfc.Options{Exclude: exclude}).Sweep()
		if err != nil {
			log.Println("[ERROR]", err)
			failed = true
			continue
		}
		log.Printf("[INFO] %s: %d renamed", dir, renamed)
	}

	if failed {
		os.Exit(1)
	}
}

func setUpLogging(debug bool) {
	logLevel := "INFO"
	if debug {
		logLevel = "DEBUG"
	}

	log.SetOutput(&logutils.LevelFilter{
		Levels:   []logutils.LogLevel{"DEBUG", "INFO", "WARN", "ERROR"},
		MinLevel: logutils.LogLevel(logLevel),
		Writer:   os.Stderr,
	})
}
