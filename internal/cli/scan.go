package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"provmark/internal/marker"
)

func init() {
	cmd := &cobra.Command{
		Use:   "scan <file>...",
		Short: "List provenance marker blocks in files",
		Args:  cobra.MinimumNArgs(1),
		Run:   runScan,
	}

	RootCmd.AddCommand(cmd)
}

func runScan(cmd *cobra.Command, args []string) {
	exitCode := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: read %s: %v\n", path, err)
			exitCode = 1
			continue
		}

		blocks := marker.Blocks(string(data))
		if len(blocks) == 0 {
			fmt.Printf("%s: no marker blocks\n", path)
			continue
		}
		for _, b := range blocks {
			fmt.Printf("%s: lines %d-%d marked\n", path, b.StartLine+1, b.EndLine+1)
		}
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
