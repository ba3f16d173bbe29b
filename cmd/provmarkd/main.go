// provmarkd classifies live text-edit events as human-typed, pasted, or
// AI-generated, and durably marks AI-generated spans with provenance
// comments.
package main

import (
	"os"

	"provmark/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
