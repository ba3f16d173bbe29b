package cli

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Run: func(cmd *cobra.Command, args []string) {
			_, cfg, err := loadConfig()
			if err != nil {
				exitErr("load config", err)
			}
			if err := toml.NewEncoder(os.Stdout).Encode(cfg); err != nil {
				exitErr("encode config", err)
			}
		},
	}

	RootCmd.AddCommand(cmd)
}
