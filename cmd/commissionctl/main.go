// Package main is the entry point for the commissionctl CLI.
package main

import (
	"os"

	"github.com/brokerdesk/commission-engine/cmd/commissionctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
