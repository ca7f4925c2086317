package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

func TestPrintResult_Table(t *testing.T) {
	res := &db3.Result{
		Rows: []db3.Row{
			{"id": int64(1), "name": "alice"},
			{"id": int64(2), "name": "bob"},
		},
	}

	var buf bytes.Buffer
	if err := printResult(&buf, res, false); err != nil {
		t.Fatalf("printResult failed: %v", err)
	}
	out := buf.String()

	// Columns are sorted by name, so id precedes name.
	header := strings.SplitN(out, "\n", 2)[0]
	if !strings.Contains(header, "id") || !strings.Contains(header, "name") {
		t.Errorf("header missing columns: %q", header)
	}
	if strings.Index(header, "id") > strings.Index(header, "name") {
		t.Errorf("columns not sorted: %q", header)
	}
	if !strings.Contains(out, "alice") || !strings.Contains(out, "bob") {
		t.Errorf("rows missing from output:\n%s", out)
	}
	if !strings.Contains(out, "(2 rows)") {
		t.Errorf("expected row count footer, got:\n%s", out)
	}
}

func TestPrintResult_JSON(t *testing.T) {
	res := &db3.Result{
		Rows: []db3.Row{{"n": int64(42)}},
	}

	var buf bytes.Buffer
	if err := printResult(&buf, res, true); err != nil {
		t.Fatalf("printResult failed: %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(decoded) != 1 || decoded[0]["n"] != float64(42) {
		t.Errorf("unexpected JSON payload: %v", decoded)
	}
}

func TestPrintResult_EmptyRowsJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printResult(&buf, &db3.Result{}, true); err != nil {
		t.Fatalf("printResult failed: %v", err)
	}

	// JSON mode must print an empty array, not null.
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("expected [] for empty result, got %q", got)
	}
}

func TestPrintResult_RowsAffected(t *testing.T) {
	var buf bytes.Buffer
	err := printResult(&buf, &db3.Result{RowsAffected: 3}, false)
	if err != nil {
		t.Fatalf("printResult failed: %v", err)
	}
	if !strings.Contains(buf.String(), "(3 rows affected)") {
		t.Errorf("expected affected-row count, got %q", buf.String())
	}
}

func TestPrintResult_ZeroRows(t *testing.T) {
	var buf bytes.Buffer
	if err := printResult(&buf, &db3.Result{}, false); err != nil {
		t.Fatalf("printResult failed: %v", err)
	}
	if !strings.Contains(buf.String(), "(0 rows)") {
		t.Errorf("expected (0 rows), got %q", buf.String())
	}
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil is NULL", nil, "NULL"},
		{"bytes are hex", []byte{0xde, 0xad}, `\xdead`},
		{"time is RFC3339", ts, "2025-03-14T09:26:53Z"},
		{"int passes through", int64(7), "7"},
		{"string passes through", "x", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(tt.in); got != tt.want {
				t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPrintStats_Absent(t *testing.T) {
	var buf bytes.Buffer
	err := printStats(&buf, db3.StatsSnapshot{Status: db3.StatusAbsent}, false)
	if err != nil {
		t.Fatalf("printStats failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "absent") {
		t.Errorf("expected absent status, got %q", out)
	}
	if strings.Contains(out, "pool:") {
		t.Errorf("absent snapshot should not print pool details, got %q", out)
	}
}

func TestPrintStats_ActiveJSON(t *testing.T) {
	now := time.Now()
	snap := db3.StatsSnapshot{
		Status:    db3.StatusActive,
		PoolID:    "pool-1",
		CreatedAt: now.Add(-time.Minute),
		LastUsed:  now,
		IdleTime:  time.Second,
		Lifetime:  time.Minute,
		Conns:     db3.PoolStat{TotalConns: 2, IdleConns: 1, AcquiredConns: 1},
	}

	var buf bytes.Buffer
	if err := printStats(&buf, snap, true); err != nil {
		t.Fatalf("printStats failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["status"] != "active" {
		t.Errorf("expected active status, got %v", decoded["status"])
	}
	if decoded["pool_id"] != "pool-1" {
		t.Errorf("expected pool id, got %v", decoded["pool_id"])
	}
	if decoded["total_conns"] != float64(2) {
		t.Errorf("expected 2 total conns, got %v", decoded["total_conns"])
	}
}

func TestPrintStats_DegradedJSONOmitsPoolFields(t *testing.T) {
	var buf bytes.Buffer
	err := printStats(&buf, db3.StatsSnapshot{Status: db3.StatusDegraded}, true)
	if err != nil {
		t.Fatalf("printStats failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["status"] != "degraded" {
		t.Errorf("expected degraded status, got %v", decoded["status"])
	}
	if _, ok := decoded["pool_id"]; ok {
		t.Error("degraded snapshot should not carry pool_id")
	}
}
