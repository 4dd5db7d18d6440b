package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/outfieldhq/learning-engine/internal/model"
)

var (
	patternsTenant string
	patternsType   string
	patternsFormat string
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Show a tenant's current conversion patterns",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "patterns", learningConfig())
		if err != nil {
			return err
		}
		defer env.Close()

		var patterns []*model.Pattern
		if patternsType != "" {
			t := model.PatternType(patternsType)
			if !t.Valid() {
				return eris.Errorf("unknown pattern type %q (want who, what, when, or how)", patternsType)
			}
			p, err := env.Store.GetPattern(ctx, patternsTenant, t)
			if err != nil {
				return eris.Wrap(err, "get pattern")
			}
			if p != nil {
				patterns = append(patterns, p)
			}
		} else {
			patterns, err = env.Store.ListPatterns(ctx, patternsTenant)
			if err != nil {
				return eris.Wrap(err, "list patterns")
			}
		}

		if len(patterns) == 0 {
			fmt.Fprintln(os.Stderr, "No patterns stored.")
			return nil
		}

		switch patternsFormat {
		case "table":
			formatPatternsTable(os.Stdout, patterns)
			return nil
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(patterns)
		default:
			return eris.Errorf("unknown format %q (want table or json)", patternsFormat)
		}
	},
}

func init() {
	patternsCmd.Flags().StringVar(&patternsTenant, "tenant", "", "tenant whose patterns to show (required)")
	patternsCmd.Flags().StringVar(&patternsType, "type", "", "show one pattern type (who, what, when, how)")
	patternsCmd.Flags().StringVar(&patternsFormat, "format", "table", "output format: table or json")
	_ = patternsCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(patternsCmd)
}

// formatPatternsTable writes a tabular pattern listing to out.
func formatPatternsTable(out io.Writer, patterns []*model.Pattern) {
	p := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TYPE\tVERSION\tSAMPLE\tCONFIDENCE\tCOMPUTED\tVALID_UNTIL")
	_, _ = fmt.Fprintln(w, "----\t-------\t------\t----------\t--------\t-----------")

	for _, pat := range patterns {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%.2f\t%s\t%s\n",
			pat.Type,
			pat.Version,
			p.Sprintf("%d", pat.SampleSize),
			pat.Confidence,
			pat.ComputedAt.Format("2006-01-02 15:04"),
			pat.ValidUntil.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
