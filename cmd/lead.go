package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/export"
	"github.com/sells-group/leadsync/internal/model"
)

var leadCmd = &cobra.Command{
	Use:   "lead",
	Short: "Add, update, delete and list leads",
}

// -- lead add --

var leadAddCmd = &cobra.Command{
	Use:         "add",
	Short:       "Save a lead and push it to the CRMs",
	Annotations: map[string]string{modeAnnotation: "sync"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initSync(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		var lead model.Lead
		for _, f := range model.UpdatableFields {
			v, _ := cmd.Flags().GetString(f.String())
			lead.Set(f, v)
		}
		return printResult(cmd.OutOrStdout(), env.Coord.AddLead(ctx, lead))
	},
}

// -- lead update --

var leadUpdateCmd = &cobra.Command{
	Use:         "update <name> <field> <value>",
	Short:       "Change one field of every lead with the given name",
	Args:        cobra.ExactArgs(3),
	Annotations: map[string]string{modeAnnotation: "sync"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initSync(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		return printResult(cmd.OutOrStdout(), env.Coord.UpdateLead(ctx, args[0], args[1], args[2]))
	},
}

// -- lead delete --

var leadDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete every local lead with the given name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initSync(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		return printResult(cmd.OutOrStdout(), env.Coord.DeleteLead(ctx, args[0]))
	},
}

// -- lead show --

var leadShowCmd = &cobra.Command{
	Use:         "show <name>",
	Short:       "Show the leads with the given name and their CRM records",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{modeAnnotation: "sync"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initSync(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		return printResult(cmd.OutOrStdout(), env.Coord.ShowLead(ctx, args[0]))
	},
}

// -- lead list --

var leadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initSync(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		return printResult(cmd.OutOrStdout(), env.Coord.ListLeads(ctx))
	},
}

// -- lead import --

var leadImportCmd = &cobra.Command{
	Use:         "import <file>",
	Short:       "Add every lead in a CSV or XLSX file",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{modeAnnotation: "sync"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, _ := cmd.Flags().GetString("format")
		if format == "" {
			format = filepath.Ext(args[0])
		}
		f, err := export.ParseFormat(format)
		if err != nil {
			return err
		}
		file, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "lead import: open")
		}
		defer file.Close() //nolint:errcheck

		leads, err := export.Read(file, f)
		if err != nil {
			return eris.Wrap(err, "lead import")
		}

		env, err := initSync(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		var saved, partial, failed int
		for _, lead := range leads {
			res := env.Coord.AddLead(ctx, lead)
			switch res.Status {
			case model.SyncSuccess:
				saved++
			case model.SyncPartial:
				saved++
				partial++
			default:
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", lead.Name, res.Message)
			}
		}

		zap.L().Info("import complete",
			zap.String("file", args[0]),
			zap.Int("saved", saved),
			zap.Int("partial", partial),
			zap.Int("failed", failed),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d leads (%d not fully synced, %d rejected).\n",
			saved, len(leads), partial, failed)
		if failed > 0 {
			return eris.Errorf("lead import: %d leads rejected", failed)
		}
		return nil
	},
}

func init() {
	for _, f := range model.UpdatableFields {
		leadAddCmd.Flags().String(f.String(), "", "lead "+f.String())
	}
	_ = leadAddCmd.MarkFlagRequired("name")

	leadImportCmd.Flags().String("format", "", "file format: csv or xlsx (default from the file extension)")

	leadCmd.AddCommand(leadAddCmd, leadUpdateCmd, leadDeleteCmd, leadShowCmd, leadListCmd, leadImportCmd)
	rootCmd.AddCommand(leadCmd)
}
