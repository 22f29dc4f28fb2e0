package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "-"},
		{-5, "-"},
		{90 * 60, "1h30m0s"},
		{int64((7*24*time.Hour + 3*time.Hour).Seconds()), "7d3h"},
	}
	for _, tt := range tests {
		if got := formatRemaining(tt.seconds); got != tt.want {
			t.Errorf("formatRemaining(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable("ID", "STATUS")
	tbl.writer = &buf
	tbl.AddRow("sub-1", formatStatus("active"))
	tbl.AddRow("sub-2", formatStatus("expired"))
	tbl.Render()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("rendered %d lines, want header, separator and 2 rows:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[2], "[+] active") || !strings.Contains(lines[3], "[-] expired") {
		t.Errorf("rows = %q", lines[2:])
	}
}

func TestPrintYAML_UsesAPIFieldNames(t *testing.T) {
	var buf bytes.Buffer
	data := struct {
		PlanID string `json:"plan_id"`
	}{PlanID: "basic-1h"}

	if err := printYAML(&buf, data); err != nil {
		t.Fatalf("printYAML() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "plan_id: basic-1h" {
		t.Errorf("yaml = %q", buf.String())
	}
}

func TestCommandTree(t *testing.T) {
	paths := [][]string{
		{"config", "init"},
		{"config", "set"},
		{"config", "get"},
		{"config", "list"},
		{"token", "mint"},
		{"plans", "list"},
		{"subscriptions", "current"},
		{"subscriptions", "create"},
		{"subscriptions", "pay"},
		{"admin", "subscriptions", "list"},
		{"admin", "subscriptions", "expire"},
		{"admin", "subscriptions", "renew"},
		{"admin", "subscriptions", "cancel"},
		{"admin", "reconciliations", "list"},
		{"admin", "reconciliations", "retry"},
	}
	for _, p := range paths {
		cmd, _, err := rootCmd.Find(p)
		if err != nil || cmd.Name() != p[len(p)-1] {
			t.Errorf("command %v not registered", p)
		}
	}

	mint, _, _ := rootCmd.Find([]string{"token", "mint"})
	if !isLocalCommand(mint) {
		t.Error("token mint should not need the server")
	}
	current, _, _ := rootCmd.Find([]string{"subscriptions", "current"})
	if isLocalCommand(current) {
		t.Error("subscriptions current needs the server")
	}
}
