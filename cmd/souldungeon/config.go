package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/giapdoan01/SoulDungeonBE/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after file lookup and environment overrides,
as YAML.

Examples:
  souldungeon config
  SOULDUNGEON_ADDR=:9000 souldungeon config`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
