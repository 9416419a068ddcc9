package main

import (
	"errors"
	"os"

	"github.com/rgould/quantrisk/cmd/quantrisk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, cmd.ErrPartialResult) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
