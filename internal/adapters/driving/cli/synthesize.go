package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/reviewpulse/internal/core/ports/driving"
)

var synthesizeJSON bool

var synthesizeCmd = &cobra.Command{
	Use:   "synthesize [theme-id]",
	Short: "Propose root causes and actions for a theme",
	Long: `Synthesise root causes and product or go-to-market actions for a
persisted theme, using the theme's evidence reviews as examples.

Results are cached per theme and prompt version; actions already recorded
for the theme are not inserted twice.`,
	Args: cobra.ExactArgs(1),
	RunE: runSynthesize,
}

func init() {
	synthesizeCmd.Flags().BoolVar(&synthesizeJSON, "json", false, "output result as JSON")
	rootCmd.AddCommand(synthesizeCmd)
}

func runSynthesize(cmd *cobra.Command, args []string) error {
	if actionService == nil {
		return errors.New("action service not configured")
	}

	result, err := actionService.SynthesizeTheme(cmd.Context(), args[0])
	if err != nil {
		if synthesizeJSON {
			return failJSON(cmd, err)
		}
		return fmt.Errorf("synthesis failed: %w", err)
	}

	if synthesizeJSON {
		return printJSON(cmd, result)
	}

	printSynthesis(cmd, result)
	return nil
}

func printSynthesis(cmd *cobra.Command, result *driving.SynthesisResult) {
	source := "generated"
	if result.Cached {
		source = "cached"
	}
	cmd.Println(titleStyle.Render("Theme " + result.ThemeID))
	cmd.Printf("Synthesis %s, %d new actions\n", source, result.Inserted)

	if len(result.Synthesis.RootCauses) > 0 {
		cmd.Println()
		cmd.Println("Root causes:")
		for _, rc := range result.Synthesis.RootCauses {
			cmd.Printf("  - %s\n", rc)
		}
	}

	if len(result.Actions) > 0 {
		cmd.Println()
		cmd.Println("Actions:")
		for _, a := range result.Actions {
			cmd.Printf("  [%-7s] %s (impact %d, effort %d)\n", a.Kind, a.Description, a.Impact, a.Effort)
			if len(a.Evidence) > 0 {
				cmd.Printf("            %s\n", mutedStyle.Render(fmt.Sprintf("evidence: %v", a.Evidence)))
			}
		}
	}
}
