// Command extras-demo draws a clickable terminal menu. Buttons run registered commands or tengo
// scripts, and the menu file can be edited while the demo runs.
package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
		logger.Error().Err(err).Msg("extras-demo failed")
		os.Exit(1)
	}
}
