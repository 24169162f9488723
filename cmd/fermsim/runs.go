package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/fermsim/internal/storage"
	"github.com/san-kum/fermsim/internal/viz"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODE\tTIME\tPRESET\tMETHOD\tSPAN\tSAMPLES\tNFEV")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%g-%gh\t%d\t%d\n",
			run.ID,
			run.Mode,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Preset,
			run.Method,
			run.Start,
			run.End,
			run.Samples,
			run.Stats.Evaluations,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	if plotSensitivity {
		return plotSensitivityRun(st, runID)
	}

	meta, res, err := loadResult(st, runID)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s (%s)\n", meta.ID, meta.Mode)
	fmt.Println(viz.Summary(res))
	fmt.Println()
	fmt.Println(viz.SpeciesSummary(res, 24))
	fmt.Println()
	fmt.Print(viz.SpeciesCharts(res, nil, 80, 10))
	return nil
}

func plotSensitivityRun(st *storage.Store, runID string) error {
	columns, times, rows, err := st.LoadSensitivity(runID)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s, %d curves over %d samples\n\n", runID, len(columns), len(times))
	for j, name := range columns {
		curve := make([]float64, len(rows))
		for k, row := range rows {
			if j < len(row) {
				curve[k] = row[j]
			}
		}
		fmt.Println(viz.Chart(curve, name+" vs time [h]", 80, 8))
		fmt.Println()
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	return storage.New(dataDir).ExportCSV(os.Stdout, args[0])
}

func exportJSON(cmd *cobra.Command, args []string) error {
	return storage.New(dataDir).ExportJSON(os.Stdout, args[0])
}
