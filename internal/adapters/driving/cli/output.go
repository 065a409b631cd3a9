package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
)

// printJSON writes v as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// failJSON writes err as a RunError and returns it.
func failJSON(cmd *cobra.Command, err error) error {
	runErr := domain.NewRunError(err, string(debug.Stack()), isProduction())
	if perr := printJSON(cmd, runErr); perr != nil {
		return perr
	}
	return err
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
