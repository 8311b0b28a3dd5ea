package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write local leads to CSV or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		out, _ := cmd.Flags().GetString("out")
		format, _ := cmd.Flags().GetString("format")
		if format == "" && out != "" {
			format = filepath.Ext(out)
		}
		if format == "" {
			format = string(export.FormatCSV)
		}
		f, err := export.ParseFormat(format)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := st.List(ctx)
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if out != "" {
			file, err := os.Create(out)
			if err != nil {
				return eris.Wrap(err, "export: create")
			}
			defer file.Close() //nolint:errcheck
			w = file
		}
		if err := export.Write(w, f, leads); err != nil {
			return err
		}
		zap.L().Info("export complete", zap.Int("leads", len(leads)), zap.String("format", string(f)), zap.String("out", out))
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the lead database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		zap.L().Info("schema up to date", zap.String("driver", cfg.Store.Driver))
		return st.Close()
	},
}

func init() {
	exportCmd.Flags().String("format", "", "csv or xlsx (default from --out extension, else csv)")
	exportCmd.Flags().String("out", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd, migrateCmd)
}
