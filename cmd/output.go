package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsync/internal/model"
)

// printResult writes res for a human, or as JSON with --json. An error
// status becomes the command's error so the exit code reflects it.
func printResult(w io.Writer, res model.SyncResult) error {
	if outputJSON {
		if err := writeJSON(w, res); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(w, res.Message)
		for _, line := range res.Leads {
			fmt.Fprintln(w, line)
		}
		for _, o := range res.Remote {
			if len(o.Data) > 0 {
				fmt.Fprintf(w, "%s %s:%s\n", o.Backend, o.NativeID, formatData(o.Data))
			}
		}
	}
	if res.Status == model.SyncError {
		return eris.Errorf("%s failed: %s", res.ErrorKind, res.Message)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatData(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, data[k])
	}
	return b.String()
}
