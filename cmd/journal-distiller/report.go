package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/theimaginaryfoundation/journal-distiller/journal/fileutils"
	"github.com/theimaginaryfoundation/journal-distiller/journal/ledger"
)

const latestRun = "latest"

// reportLedger prints one recorded run and its request outcomes to w.
func reportLedger(ctx context.Context, path, runID string, w io.Writer) error {
	if !fileutils.FileExists(path) {
		return fmt.Errorf("ledger report: %s does not exist", path)
	}
	l, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer l.Close()

	if runID == latestRun {
		runID, err = l.LatestRunID(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("ledger report: no runs recorded in %s", path)
		}
		if err != nil {
			return err
		}
	}
	run, err := l.GetRun(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("ledger report: run %q not found in %s", runID, path)
	}
	if err != nil {
		return err
	}
	outcomes, err := l.Outcomes(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "run %s\n", run.ID)
	fmt.Fprintf(w, "started=%s finished=%s\n", formatStamp(run.StartedAt), formatStamp(run.FinishedAt))
	fmt.Fprintf(w, "provider=%s model=%s in=%s out_dir=%s\n", run.Provider, run.Model, run.InputPath, run.OutDir)
	fmt.Fprintf(w, "requests=%d processed=%d skipped_existing=%d errors=%d\n",
		run.Requests, run.Stats.Processed, run.Stats.SkippedExisting, run.Stats.Errors)
	for _, o := range outcomes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s", o.Status, o.ThreadID, o.Title, o.Duration.Round(time.Millisecond))
		switch {
		case o.Err != "":
			fmt.Fprintf(w, "\t%s: %s", o.Category, o.Err)
		case o.Path != "":
			fmt.Fprintf(w, "\t%s", o.Path)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
