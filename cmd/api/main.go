package main

import (
	"os"

	"github.com/volkanakin/storefront-checkout/internal/app"
)

func main() {
	err := app.Run()
	if err != nil {
		os.Exit(1)
	}
}
