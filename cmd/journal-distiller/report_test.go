package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestReportLedger(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.LedgerPath = filepath.Join(filepath.Dir(cfg.InPath), "ledger.db")
	a, _ := newTestApp(t, cfg, "")
	if _, err := a.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, id := range []string{"run-1", latestRun} {
		var out bytes.Buffer
		if err := reportLedger(context.Background(), cfg.LedgerPath, id, &out); err != nil {
			t.Fatalf("reportLedger(%s): %v", id, err)
		}
		got := out.String()
		for _, want := range []string{
			"run run-1\n",
			"requests=1 processed=1 skipped_existing=0 errors=0\n",
			"processed\t100\tTrip: Alps\t",
			filepath.Join(cfg.OutDir, "Trip Alps.md"),
		} {
			if !strings.Contains(got, want) {
				t.Fatalf("reportLedger(%s) missing %q:\n%s", id, want, got)
			}
		}
	}

	var out bytes.Buffer
	err := reportLedger(context.Background(), cfg.LedgerPath, "nope", &out)
	if err == nil || !strings.Contains(err.Error(), `run "nope" not found`) {
		t.Fatalf("unknown run: err=%v", err)
	}
}

func TestReportLedgerMissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ledger.db")
	err := reportLedger(context.Background(), path, latestRun, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("err=%v", err)
	}
}
