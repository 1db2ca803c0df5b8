// Package main is the entry point for the popcorn-session CLI.
package main

import (
	"os"

	"github.com/popcorntime/session/cmd/popcorn-session/app"
	"github.com/popcorntime/session/pkg/logger"
)

func main() {
	// Initialize the logger
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
