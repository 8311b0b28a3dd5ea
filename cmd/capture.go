package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadsync/internal/extract"
)

var extractCmd = &cobra.Command{
	Use:   "extract <text>",
	Short: "Show the lead fields found in text without saving anything",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var ex extract.Extractor
		fields := ex.Extract(strings.Join(args, " "))
		if len(fields) == 0 {
			return eris.New("no lead details found")
		}
		if outputJSON {
			return writeJSON(cmd.OutOrStdout(), fields)
		}
		lead := fields.ToLead()
		for _, f := range fields.Missing() {
			cmd.PrintErrf("missing: %s\n", f)
		}
		fmt.Fprintln(cmd.OutOrStdout(), lead.Display())
		return nil
	},
}

var captureCmd = &cobra.Command{
	Use:         "capture <text>",
	Short:       "Extract a lead from text, save it and push it to the CRMs",
	Args:        cobra.MinimumNArgs(1),
	Annotations: map[string]string{modeAnnotation: "sync"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initSync(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		res := env.Coord.Capture(ctx, strings.Join(args, " "))
		return printResult(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(captureCmd)
}
