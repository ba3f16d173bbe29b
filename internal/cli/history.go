package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"provmark/internal/annotate"
	"provmark/internal/store"
)

func init() {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [file]",
		Short: "Show recorded annotations from the ledger",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			_, cfg, err := loadConfig()
			if err != nil {
				exitErr("load config", err)
			}

			ledger, err := store.Open(cfg.Storage.Path)
			if err != nil {
				exitErr("open ledger", err)
			}
			defer ledger.Close()

			recs, err := queryHistory(ledger, args, limit)
			if err != nil {
				exitErr("query ledger", err)
			}

			if len(recs) == 0 {
				fmt.Println("no annotations recorded")
				return
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tFILE\tLINES\tCHANGES\tREASON")
			for _, r := range recs {
				fmt.Fprintf(w, "%s\t%s\t%d-%d\t%d\t%s\n",
					r.CreatedAt.Format("2006-01-02 15:04:05"),
					r.FilePath, r.StartLine+1, r.EndLine+1,
					r.ChangeCount, r.Reason)
			}
			w.Flush()

			stats, err := ledger.Stats()
			if err == nil {
				fmt.Printf("\n%d annotations across %d files (%d chars marked)\n",
					stats.TotalAnnotations, stats.FilesAnnotated, stats.TotalChars)
			}
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum records to show")

	RootCmd.AddCommand(cmd)
}

func queryHistory(ledger *store.Store, args []string, limit int) ([]annotate.Record, error) {
	if len(args) == 1 {
		return ledger.History(args[0], limit)
	}
	return ledger.Recent(limit)
}
