// Package main is the entry point for the ttsdesk CLI.
package main

import (
	"os"

	"github.com/fatih/color"

	"github.com/vinicius00franco/tts-sst-idiomas/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
