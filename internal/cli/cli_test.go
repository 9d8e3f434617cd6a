package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/floorsync/server/internal/dataset"
	"github.com/floorsync/server/internal/logrotate"
	"github.com/floorsync/server/internal/mirror"
	"github.com/floorsync/server/internal/plansync"
	"github.com/floorsync/server/internal/scan"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		planDryRun = false
		jobsLimit = 0
		logsRetentionDays = 0
		mirrorURL, mirrorPrimary, mirrorDryRun = "", "", false
		rootCmd.SetOut(nil)
	})
	err := Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("SERVER_ROOT", root)
	t.Setenv("SERVER_MASTER_DIR", filepath.Join(root, "master"))
	t.Setenv("PLAN_DATA_DIR", filepath.Join(root, "plan"))
	t.Setenv("LOGISTICS_DATA_PATH", filepath.Join(root, "jobs.json"))
	t.Setenv("LOG_FILE", "")
	t.Setenv("PLAN_DATASETS_FILE", "")
	t.Setenv("LOG_DIR", filepath.Join(root, "logs"))
	t.Setenv("LOGISTICS_AUDIT_PATH", filepath.Join(root, "logs", "logistics_audit.log"))
	t.Setenv("MIRROR_STATUS_DIR", filepath.Join(root, "mirror"))
	t.Setenv("MIRROR_URL", "")
	t.Setenv("API_TOKEN", "")
	return root
}

func writeMaster(t *testing.T, root string, def dataset.Definition, header []string) {
	t.Helper()
	dir := filepath.Join(root, "master")
	os.MkdirAll(dir, 0755)
	content := strings.Join(header, ",") + "\nrow\n"
	if err := os.WriteFile(filepath.Join(dir, def.Filename), []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestPlanSync_DryRun(t *testing.T) {
	root := setupEnv(t)
	def := dataset.DefaultDefinitions()[0]
	writeMaster(t, root, def, def.Columns)

	out, err := run(t, "plan", "sync", "--dry-run")
	if err != nil {
		t.Fatalf("plan sync: %v", err)
	}

	var report plansync.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report %q: %v", out, err)
	}
	if !report.DryRun || len(report.Results) != 2 {
		t.Errorf("unexpected report %+v", report)
	}
	if _, err := os.Stat(filepath.Join(root, "plan")); !os.IsNotExist(err) {
		t.Error("expected plan dir not to be created on dry run")
	}
}

func TestPlanSync_HeaderMismatch(t *testing.T) {
	root := setupEnv(t)
	writeMaster(t, root, dataset.DefaultDefinitions()[0], []string{"wrong"})

	_, err := run(t, "plan", "sync")
	if !errors.Is(err, errHeaderMismatch) {
		t.Errorf("expected errHeaderMismatch, got %v", err)
	}
}

func TestExecute_ClosesLogFileOnFailure(t *testing.T) {
	root := setupEnv(t)
	logPath := filepath.Join(root, "floorsync.log")
	t.Setenv("LOG_FILE", logPath)
	writeMaster(t, root, dataset.DefaultDefinitions()[0], []string{"wrong"})

	if _, err := run(t, "plan", "sync"); !errors.Is(err, errHeaderMismatch) {
		t.Fatalf("expected errHeaderMismatch, got %v", err)
	}
	if closeLogger != nil {
		t.Error("expected log file closed after a failing command")
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "plan dataset rejected") {
		t.Errorf("expected rejection logged, got %s", data)
	}
}

func TestJobsList_Empty(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "jobs", "list", "--limit", "5")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("expected empty list, got %q", out)
	}
}

func TestLogsRotate(t *testing.T) {
	root := setupEnv(t)
	audit := filepath.Join(root, "logs", "logistics_audit.log")
	os.MkdirAll(filepath.Dir(audit), 0755)
	os.WriteFile(audit, []byte("{\"event\":\"create\"}\n"), 0644)

	out, err := run(t, "logs", "rotate", "--retention-days", "7")
	if err != nil {
		t.Fatalf("logs rotate: %v", err)
	}
	var report logrotate.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if len(report.Rotated) != 1 || report.Rotated[0].Source != audit {
		t.Fatalf("expected audit log rotated, got %+v", report)
	}
	if _, err := os.Stat(report.Rotated[0].Archive); err != nil {
		t.Errorf("archive missing: %v", err)
	}
}

func partLocationsServer(t *testing.T, locs []scan.PartLocation) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"entries": locs})
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestMirrorCompare(t *testing.T) {
	root := setupEnv(t)
	at := time.Date(2025, 10, 31, 12, 0, 0, 0, time.UTC)
	same := []scan.PartLocation{{OrderCode: "A", LocationCode: "RACK-A1", LastScanID: "scan-1", ScannedAt: at, UpdatedAt: at}}
	primary := partLocationsServer(t, same)

	out, err := run(t, "mirror", "compare", "--primary", primary, "--mirror", partLocationsServer(t, same))
	if err != nil {
		t.Fatalf("mirror compare: %v", err)
	}
	var res mirror.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode result: %v\n%s", err, out)
	}
	if res.Status != mirror.StatusOK || res.OKStreak != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if mirror.ReadCounter(filepath.Join(root, "mirror")) != 1 {
		t.Error("expected ok counter written")
	}

	_, err = run(t, "mirror", "compare", "--primary", primary, "--mirror", partLocationsServer(t, nil))
	if !errors.Is(err, errMirrorDiff) {
		t.Errorf("expected errMirrorDiff, got %v", err)
	}

	out, err = run(t, "mirror", "status")
	if err != nil {
		t.Fatalf("mirror status: %v", err)
	}
	var summary mirror.Summary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.OKStreak != 0 || summary.LastDiff == nil {
		t.Errorf("unexpected summary %+v", summary)
	}
}
