// Package main is the entry point for the marketmaker server.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/sidpendyala/marketmaker/cmd/marketmaker/cmd"
)

func main() {
	// Secrets referenced as ${VAR} in the config resolve from the
	// environment; a local .env file feeds them during development.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
