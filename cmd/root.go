package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/config"
)

var (
	cfg        *config.Config
	outputJSON bool
)

// modeAnnotation names the config.Validate mode a command needs. Commands
// without it only touch the local store.
const modeAnnotation = "leadsync/mode"

var rootCmd = &cobra.Command{
	Use:   "leadsync",
	Short: "Capture sales leads and keep them in sync with your CRMs",
	Long: "Extracts lead details from free text, stores them locally and pushes them to " +
		"HubSpot, Airtable, Salesforce and Notion. Failed pushes are retried from a durable outbox.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		mode := cmd.Annotations[modeAnnotation]
		if mode == "" {
			mode = "local"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print results as JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
