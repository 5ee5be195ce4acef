package main

import (
	"fmt"
	"os"

	"github.com/barry/paywifi/internal/app"
)

func main() {
	if err := app.Run(os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "paywifi: %v\n", err)
		os.Exit(1)
	}
}
