// Package main is the entry point for the bbx CLI client.
package main

import (
	"github.com/donaldgifford/buybox/cmd/bbx/cmd"
)

func main() {
	cmd.Execute()
}
