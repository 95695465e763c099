// Package main is the entry point for the mmctl CLI.
package main

import (
	"github.com/sidpendyala/marketmaker/cmd/mmctl/cmd"
)

func main() {
	cmd.Execute()
}
