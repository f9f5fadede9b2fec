// Package main is the entry point for the buybox service.
package main

import (
	"os"

	"github.com/donaldgifford/buybox/cmd/buybox/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
