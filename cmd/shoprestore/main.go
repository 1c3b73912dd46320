// Command shoprestore is the operator CLI.
package main

import (
	"os"

	"github.com/kilupskalvis/shoprestore/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
