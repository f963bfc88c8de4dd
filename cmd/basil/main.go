// Basil is a cook-along assistant: it walks through a recipe one timed
// step at a time, narrating each step and illustrating it.
//
// Usage:
//
//	basil [cook] [--config basil.toml] [--voice] [--no-speech] [--no-images]
//	basil recipes [query]
//	basil history
//	basil init
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
