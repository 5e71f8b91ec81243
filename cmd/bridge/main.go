package main

import (
	"fmt"
	"os"

	"github.com/ayo6706/twinvest-bridge/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "bridge error: %v\n", err)
		os.Exit(1)
	}
}
