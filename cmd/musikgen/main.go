package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/igolaizola/musikgen"
	"github.com/igolaizola/musikgen/pkg/cli"
	"github.com/igolaizola/musikgen/pkg/generator"
)

// Build flags
var version = ""
var commit = ""
var date = ""

func main() {
	// Create signal based context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Launch command
	cmd := cli.New(version, commit, date)
	err := cmd.ParseAndRun(ctx, os.Args[1:])
	if err == nil {
		return
	}
	var cfgErr *generator.ConfigError
	switch {
	case errors.Is(err, musikgen.ErrFailed):
		cancel()
		os.Exit(1)
	case errors.As(err, &cfgErr):
		fmt.Fprintln(os.Stderr, cfgErr)
		cancel()
		os.Exit(2)
	default:
		log.Fatal(err)
	}
}
