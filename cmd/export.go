package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/outfieldhq/learning-engine/internal/model"
	"github.com/outfieldhq/learning-engine/internal/store"
)

var (
	exportOut    string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored patterns and run history to a report file",
	Long:  "Writes every tenant's current patterns (and, for xlsx, the recent run history on a second sheet) to a report file for offline review.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "export", learningConfig())
		if err != nil {
			return err
		}
		defer env.Close()

		patterns, err := env.Store.ListAllPatterns(ctx)
		if err != nil {
			return eris.Wrap(err, "list patterns")
		}

		switch exportFormat {
		case "xlsx":
			runs, err := env.Store.ListRuns(ctx, store.RunFilter{Limit: 100})
			if err != nil {
				return eris.Wrap(err, "list runs")
			}
			if err := writeXLSXReport(exportOut, patterns, runs); err != nil {
				return err
			}
		case "csv":
			if err := writeCSVReport(exportOut, patterns); err != nil {
				return err
			}
		default:
			return eris.Errorf("unknown format %q (want xlsx or csv)", exportFormat)
		}

		zap.L().Info("report written",
			zap.String("path", exportOut),
			zap.String("format", exportFormat),
			zap.Int("patterns", len(patterns)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "report.xlsx", "output file path")
	exportCmd.Flags().StringVar(&exportFormat, "format", "xlsx", "output format: xlsx or csv")
	rootCmd.AddCommand(exportCmd)
}

var patternHeader = []string{"TENANT", "TYPE", "VERSION", "SAMPLE", "CONFIDENCE", "COMPUTED_AT", "VALID_UNTIL"}

// patternRow stringifies one pattern for the csv writer.
func patternRow(p *model.Pattern) []string {
	return []string{
		p.TenantID,
		string(p.Type),
		strconv.Itoa(p.Version),
		strconv.Itoa(p.SampleSize),
		fmt.Sprintf("%.3f", p.Confidence),
		p.ComputedAt.Format("2006-01-02 15:04:05"),
		p.ValidUntil.Format("2006-01-02 15:04:05"),
	}
}

func writeCSVReport(path string, patterns []*model.Pattern) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "create report file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(patternHeader); err != nil {
		return eris.Wrap(err, "write csv header")
	}
	for _, p := range patterns {
		if err := w.Write(patternRow(p)); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "flush csv")
	}
	return nil
}

func writeXLSXReport(path string, patterns []*model.Pattern, runs []*model.LearningRun) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("Patterns")
	if err != nil {
		return eris.Wrap(err, "add patterns sheet")
	}
	header := sheet.AddRow()
	for _, h := range patternHeader {
		header.AddCell().Value = h
	}
	for _, p := range patterns {
		row := sheet.AddRow()
		row.AddCell().Value = p.TenantID
		row.AddCell().Value = string(p.Type)
		row.AddCell().SetInt(p.Version)
		row.AddCell().SetInt(p.SampleSize)
		row.AddCell().SetFloat(p.Confidence)
		row.AddCell().Value = p.ComputedAt.Format("2006-01-02 15:04:05")
		row.AddCell().Value = p.ValidUntil.Format("2006-01-02 15:04:05")
	}

	runsSheet, err := f.AddSheet("Runs")
	if err != nil {
		return eris.Wrap(err, "add runs sheet")
	}
	runsHeader := runsSheet.AddRow()
	for _, h := range []string{"RUN_ID", "TRIGGER", "TENANT", "STATUS", "PROCESSED", "FAILED", "STORED", "STARTED", "FINISHED"} {
		runsHeader.AddCell().Value = h
	}
	for _, r := range runs {
		row := runsSheet.AddRow()
		row.AddCell().Value = r.ID
		row.AddCell().Value = string(r.Trigger)
		row.AddCell().Value = r.TenantID
		row.AddCell().Value = string(r.Status)
		row.AddCell().SetInt(r.Summary.TenantsProcessed)
		row.AddCell().SetInt(r.Summary.TenantsFailed)
		row.AddCell().SetInt(r.Summary.PatternsStored)
		row.AddCell().Value = r.StartedAt.Format("2006-01-02 15:04:05")
		if r.FinishedAt != nil {
			row.AddCell().Value = r.FinishedAt.Format("2006-01-02 15:04:05")
		} else {
			row.AddCell().Value = ""
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "save report")
	}
	return nil
}
