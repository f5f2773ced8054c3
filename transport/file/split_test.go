package file_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/vpbank/switchdiag/transport/file"
)

const (
	healthyReport  = `{"id":"1","host":"sw1","sysinfo":{"name":"sw1"},"web_ui":{"enabled":false,"reachable":false}}`
	degradedReport = `{"id":"2","host":"sw2","sysinfo":{"error":"snmp get 10.0.0.2:161 1.3.6.1.2.1.1.5.0: transport error: timeout","kind":"transport"}}`
)

// ─────────────────────────────────────────────────────────────────────────────
// SplitWriterTransport tests
// ─────────────────────────────────────────────────────────────────────────────

func newSplitBufs(t *testing.T) (*bytes.Buffer, *bytes.Buffer, *file.SplitWriterTransport) {
	t.Helper()
	var reportBuf, degradedBuf bytes.Buffer
	tr := file.NewSplit(file.SplitConfig{
		ReportWriter:   &reportBuf,
		DegradedWriter: &degradedBuf,
	}, nil)
	return &reportBuf, &degradedBuf, tr
}

func TestIsDegraded(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{"healthy", healthyReport, false},
		{"failed category", degradedReport, true},
		{"marker inside a string value", `{"sysinfo":{"descr":"\"kind\":\"x\""}}`, false},
		{"indented failed category", "{\n  \"sysinfo\": {\n    \"error\": \"timeout\",\n    \"kind\": \"transport\"\n  }\n}", true},
		{"kind key without string value", `{"kind":1}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := file.IsDegraded([]byte(tt.data)); got != tt.want {
				t.Errorf("IsDegraded = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplit_HealthyRouting(t *testing.T) {
	reportBuf, degradedBuf, tr := newSplitBufs(t)

	if err := tr.Send([]byte(healthyReport)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reportBuf.String() != healthyReport+"\n" {
		t.Errorf("reportBuf = %q", reportBuf.String())
	}
	if degradedBuf.Len() != 0 {
		t.Errorf("expected empty degradedBuf, got %q", degradedBuf.String())
	}
}

func TestSplit_DegradedRouting(t *testing.T) {
	reportBuf, degradedBuf, tr := newSplitBufs(t)

	if err := tr.Send([]byte(degradedReport)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if degradedBuf.String() != degradedReport+"\n" {
		t.Errorf("degradedBuf = %q", degradedBuf.String())
	}
	if reportBuf.Len() != 0 {
		t.Errorf("expected empty reportBuf, got %q", reportBuf.String())
	}
}

func TestSplit_ConcurrentSafe(t *testing.T) {
	reportBuf, degradedBuf, tr := newSplitBufs(t)
	const n = 50

	var wg sync.WaitGroup
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = tr.Send([]byte(healthyReport))
		}()
		go func() {
			defer wg.Done()
			_ = tr.Send([]byte(degradedReport))
		}()
	}
	wg.Wait()

	if got := strings.Count(reportBuf.String(), "\n"); got != n {
		t.Errorf("report lines = %d, want %d", got, n)
	}
	if got := strings.Count(degradedBuf.String(), "\n"); got != n {
		t.Errorf("degraded lines = %d, want %d", got, n)
	}
}

func TestSplit_ErrorOnFailingWriter(t *testing.T) {
	tr := file.NewSplit(file.SplitConfig{ReportWriter: &errWriter{}, DegradedWriter: &errWriter{}}, nil)
	if err := tr.Send([]byte(healthyReport)); err == nil {
		t.Error("expected error for report writer")
	}
	if err := tr.Send([]byte(degradedReport)); err == nil {
		t.Error("expected error for degraded writer")
	}
}

func TestSplit_DefaultWriters(t *testing.T) {
	tr := file.NewSplit(file.SplitConfig{}, nil)
	if err := tr.Close(); err != nil {
		t.Errorf("Close with std streams: %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// RotatingFile tests
// ─────────────────────────────────────────────────────────────────────────────

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestRotatingFile_BasicWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.ndjson")
	rf, err := file.NewRotatingFile(file.RotateConfig{FilePath: path}, nil)
	if err != nil {
		t.Fatalf("NewRotatingFile: %v", err)
	}
	if _, err := rf.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := rf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := readFile(t, path); got != "hello\n" {
		t.Errorf("content = %q", got)
	}
	if _, err := rf.Write([]byte("late")); err == nil {
		t.Error("expected error writing after Close")
	}
}

func TestRotatingFile_RotatesOnSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.ndjson")
	rf, err := file.NewRotatingFile(file.RotateConfig{FilePath: path, MaxBytes: 10}, nil)
	if err != nil {
		t.Fatalf("NewRotatingFile: %v", err)
	}
	defer rf.Close()

	_, _ = rf.Write([]byte("first-8\n"))
	_, _ = rf.Write([]byte("second-9\n"))

	if got := readFile(t, path+".1"); got != "first-8\n" {
		t.Errorf(".1 = %q", got)
	}
	if got := readFile(t, path); got != "second-9\n" {
		t.Errorf("active = %q", got)
	}
}

func TestRotatingFile_OversizedRecordIsNotRotatedAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.ndjson")
	rf, err := file.NewRotatingFile(file.RotateConfig{FilePath: path, MaxBytes: 4}, nil)
	if err != nil {
		t.Fatalf("NewRotatingFile: %v", err)
	}
	defer rf.Close()

	_, _ = rf.Write([]byte("much-longer-than-four\n"))
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("empty file should not be rotated")
	}
}

func TestRotatingFile_PrunesOldBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.ndjson")
	rf, err := file.NewRotatingFile(file.RotateConfig{FilePath: path, MaxBytes: 5, MaxBackups: 2}, nil)
	if err != nil {
		t.Fatalf("NewRotatingFile: %v", err)
	}
	defer rf.Close()

	for _, rec := range []string{"aaaa\n", "bbbb\n", "cccc\n", "dddd\n"} {
		if _, err := rf.Write([]byte(rec)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	if got := readFile(t, path); got != "dddd\n" {
		t.Errorf("active = %q", got)
	}
	if got := readFile(t, path+".1"); got != "cccc\n" {
		t.Errorf(".1 = %q", got)
	}
	if got := readFile(t, path+".2"); got != "bbbb\n" {
		t.Errorf(".2 = %q", got)
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error(".3 should have been pruned")
	}
}

func TestRotatingFile_RequiresFilePath(t *testing.T) {
	if _, err := file.NewRotatingFile(file.RotateConfig{}, nil); err == nil {
		t.Fatal("expected error for empty FilePath")
	}
}

func TestRotatingFile_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "reports.ndjson")
	rf, err := file.NewRotatingFile(file.RotateConfig{FilePath: path}, nil)
	if err != nil {
		t.Fatalf("NewRotatingFile: %v", err)
	}
	defer rf.Close()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not created: %v", err)
	}
}

func TestSplit_WithRotatingFiles(t *testing.T) {
	dir := t.TempDir()
	reports, err := file.NewRotatingFile(file.RotateConfig{FilePath: filepath.Join(dir, "reports.ndjson")}, nil)
	if err != nil {
		t.Fatalf("reports: %v", err)
	}
	degraded, err := file.NewRotatingFile(file.RotateConfig{FilePath: filepath.Join(dir, "degraded.ndjson")}, nil)
	if err != nil {
		t.Fatalf("degraded: %v", err)
	}

	tr := file.NewSplit(file.SplitConfig{ReportWriter: reports, DegradedWriter: degraded}, nil)
	_ = tr.Send([]byte(healthyReport))
	_ = tr.Send([]byte(degradedReport))
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := readFile(t, filepath.Join(dir, "reports.ndjson")); got != healthyReport+"\n" {
		t.Errorf("reports = %q", got)
	}
	if got := readFile(t, filepath.Join(dir, "degraded.ndjson")); got != degradedReport+"\n" {
		t.Errorf("degraded = %q", got)
	}
	// Owned files are closed.
	if _, err := reports.Write([]byte("x")); err == nil {
		t.Error("reports file still open after Close")
	}
}

func TestSplit_IndentedDegradedRouting(t *testing.T) {
	reportBuf, degradedBuf, tr := newSplitBufs(t)
	indented := "{\n  \"host\": \"sw2\",\n  \"sysinfo\": {\n    \"error\": \"timeout\",\n    \"kind\": \"transport\"\n  }\n}"

	if err := tr.Send([]byte(indented)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if degradedBuf.String() != indented+"\n" {
		t.Errorf("degradedBuf = %q", degradedBuf.String())
	}
	if reportBuf.Len() != 0 {
		t.Errorf("expected empty reportBuf, got %q", reportBuf.String())
	}
}

func TestWriterTransport_RotationKeepsRecordsWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.ndjson")
	rf, err := file.NewRotatingFile(file.RotateConfig{FilePath: path, MaxBytes: 20}, nil)
	if err != nil {
		t.Fatalf("NewRotatingFile: %v", err)
	}
	tr := file.New(file.Config{Writer: rf}, nil)

	// The second record plus its newline would take the file to 21 bytes.
	for _, rec := range []string{`{"a":1}`, `{"b":222222}`, `{"c":3}`} {
		if err := tr.Send([]byte(rec)); err != nil {
			t.Fatalf("Send(%s): %v", rec, err)
		}
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := map[string]string{
		path + ".2": "{\"a\":1}\n",
		path + ".1": "{\"b\":222222}\n",
		path:        "{\"c\":3}\n",
	}
	for p, w := range want {
		if got := readFile(t, p); got != w {
			t.Errorf("%s = %q, want %q", filepath.Base(p), got, w)
		}
	}
}

func TestWriterTransport_RecordFillingFileExactly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.ndjson")
	rf, err := file.NewRotatingFile(file.RotateConfig{FilePath: path, MaxBytes: 13}, nil)
	if err != nil {
		t.Fatalf("NewRotatingFile: %v", err)
	}
	tr := file.New(file.Config{Writer: rf}, nil)
	defer tr.Close()

	// 12 bytes of JSON plus the newline is exactly MaxBytes.
	_ = tr.Send([]byte(`{"b":222222}`))
	_ = tr.Send([]byte(`{"c":3}`))

	if got := readFile(t, path+".1"); got != "{\"b\":222222}\n" {
		t.Errorf(".1 = %q", got)
	}
	if got := readFile(t, path); got != "{\"c\":3}\n" {
		t.Errorf("active = %q", got)
	}
}
