package json_test

import (
	stdjson "encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	fmtjson "github.com/vpbank/switchdiag/format/json"
	"github.com/vpbank/switchdiag/pkg/switchdiag/diag"
	"github.com/vpbank/switchdiag/pkg/switchdiag/session"
	"github.com/vpbank/switchdiag/pkg/switchdiag/table"
	"github.com/vpbank/switchdiag/snmp/value"
)

// ─────────────────────────────────────────────────────────────────────────────
// Shared fixtures
// ─────────────────────────────────────────────────────────────────────────────

var testTimestamp = time.Date(2026, 2, 26, 10, 30, 0, 0, time.UTC)

func interfaceTable() *table.Table {
	names := value.NewEnumeration()
	names.Set("1.3.6.1.2.1.2.2.1.2.1", value.String("Gi0/1"))
	names.Set("1.3.6.1.2.1.2.2.1.2.2", value.String("Gi0/2"))
	oper := value.NewEnumeration()
	oper.Set("1.3.6.1.2.1.2.2.1.8.1", value.Integer(1))
	return table.Reconstruct(
		table.ColumnResult{Column: table.InterfacePrimary, Values: names},
		table.ColumnResult{Column: table.Column{Field: "oper_status", Root: table.IfOperStatus}, Values: oper},
	)
}

func fullReport() *diag.Report {
	return &diag.Report{
		ID:         "c0ffee00-0000-4000-8000-000000000001",
		Host:       "sw-lab-01",
		Vendor:     "cisco",
		StartedAt:  testTimestamp,
		DurationMs: 245,
		SysInfo: diag.Result[*diag.SysInfo]{Value: &diag.SysInfo{
			Name:        value.String("sw-lab-01"),
			Descr:       value.String("Cisco IOS Software"),
			Uptime:      value.TimeTicks(123456),
			SysObjectID: "1.3.6.1.4.1.9.1.1208",
		}},
		Interfaces: diag.Result[*table.Table]{Value: interfaceTable()},
		STP: diag.Result[*diag.STPStatus]{Err: &session.ProtocolError{
			Kind: session.KindApplication, Op: "get", Target: "10.0.0.1:161",
			OID: "1.3.6.1.2.1.17.2.5.0", Reason: "noSuchObject",
		}},
		Logs:  diag.Result[*diag.LogSummary]{Err: fmt.Errorf("log summary: %w", diag.ErrNotImplemented)},
		WebUI: diag.WebUIStatus{},
	}
}

func mustFormat(t *testing.T, f *fmtjson.JSONFormatter, r *diag.Report) []byte {
	t.Helper()
	data, err := f.Format(r)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	return data
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestFormat_Compact(t *testing.T) {
	f := fmtjson.New(fmtjson.Config{}, nil)
	data := mustFormat(t, f, fullReport())

	if strings.Contains(string(data), "\n") {
		t.Errorf("compact output contains newline: %s", data)
	}
	if !stdjson.Valid(data) {
		t.Fatalf("invalid JSON: %s", data)
	}
}

func TestFormat_Schema(t *testing.T) {
	data := mustFormat(t, fmtjson.New(fmtjson.Config{}, nil), fullReport())

	var got map[string]stdjson.RawMessage
	if err := stdjson.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{
		"id", "host", "vendor", "started_at", "duration_ms",
		"sysinfo", "resources", "interfaces", "interface_stats", "stp", "logs", "web_ui",
	} {
		if _, ok := got[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}

	if s := string(got["started_at"]); s != `"2026-02-26T10:30:00Z"` {
		t.Errorf("started_at = %s", s)
	}
	if s := string(got["web_ui"]); s != `{"enabled":false,"reachable":false}` {
		t.Errorf("web_ui = %s", s)
	}
	if s := string(got["resources"]); s != "null" {
		t.Errorf("resources = %s, want null", s)
	}
}

func TestFormat_SysInfoValues(t *testing.T) {
	data := mustFormat(t, fmtjson.New(fmtjson.Config{}, nil), fullReport())

	var got struct {
		SysInfo map[string]interface{} `json:"sysinfo"`
	}
	if err := stdjson.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.SysInfo["name"] != "sw-lab-01" {
		t.Errorf("name = %v", got.SysInfo["name"])
	}
	if got.SysInfo["uptime"] != float64(123456) {
		t.Errorf("uptime = %v (%T), want number", got.SysInfo["uptime"], got.SysInfo["uptime"])
	}
	if got.SysInfo["contact"] != nil {
		t.Errorf("contact = %v, want null", got.SysInfo["contact"])
	}
}

func TestFormat_InterfacesKeepIndexOrder(t *testing.T) {
	data := string(mustFormat(t, fmtjson.New(fmtjson.Config{}, nil), fullReport()))

	want := `"interfaces":{"1":{"name":"Gi0/1","oper_status":1},"2":{"name":"Gi0/2","oper_status":null}}`
	if !strings.Contains(data, want) {
		t.Errorf("interfaces not rendered as expected\n got: %s\nwant substring: %s", data, want)
	}
}

func TestFormat_FailedCategory(t *testing.T) {
	data := mustFormat(t, fmtjson.New(fmtjson.Config{}, nil), fullReport())

	var got struct {
		STP  map[string]string `json:"stp"`
		Logs map[string]string `json:"logs"`
	}
	if err := stdjson.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.STP["kind"] != "application" {
		t.Errorf("stp kind = %q, want application", got.STP["kind"])
	}
	if !strings.Contains(got.STP["error"], "noSuchObject") {
		t.Errorf("stp error = %q", got.STP["error"])
	}
	if got.Logs["kind"] != "not_implemented" {
		t.Errorf("logs kind = %q, want not_implemented", got.Logs["kind"])
	}
}

func TestFormat_PrettyPrint(t *testing.T) {
	f := fmtjson.New(fmtjson.Config{PrettyPrint: true}, nil)
	data := string(mustFormat(t, f, fullReport()))

	if !strings.Contains(data, "\n  \"host\": \"sw-lab-01\"") {
		t.Errorf("expected two-space indentation, got:\n%s", data)
	}
}

func TestFormat_CustomIndent(t *testing.T) {
	f := fmtjson.New(fmtjson.Config{PrettyPrint: true, Indent: "\t"}, nil)
	data := string(mustFormat(t, f, fullReport()))

	if !strings.Contains(data, "\n\t\"host\"") {
		t.Errorf("expected tab indentation, got:\n%s", data)
	}
}

func TestFormat_NilReport(t *testing.T) {
	if _, err := fmtjson.New(fmtjson.Config{}, nil).Format(nil); err == nil {
		t.Fatal("expected error for nil report")
	}
}

func TestFormat_ConcurrentUse(t *testing.T) {
	f := fmtjson.New(fmtjson.Config{}, nil)
	r := fullReport()

	done := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func() {
			_, err := f.Format(r)
			done <- err
		}()
	}
	for i := 0; i < 20; i++ {
		if err := <-done; err != nil {
			t.Errorf("Format: %v", err)
		}
	}
}
