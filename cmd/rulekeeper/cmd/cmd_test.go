package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/solatis/rulekeeper/internal/catalog/catalogtest"
)

const scoreRule = `{"structure":"condition","returnType":"boolean","ruleType":"test","uuId":"r1","version":1,` +
	`"metadata":{"id":"","description":""},` +
	`"definition":{"name":"Root","conjunction":"AND","not":false,"conditions":[` +
	`{"name":"Condition 1","left":{"type":"field","returnType":"number","field":"score"},"operator":"greater",` +
	`"right":{"type":"value","returnType":"number","value":10}}]}}`

// run executes the root command with args and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	err := rootCmd.Execute()
	return out.String(), err
}

// withCatalog points the configuration at the fixture catalog.
func withCatalog(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(catalogtest.JSON), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v, want nil", err)
	}
	t.Setenv("RK_CATALOG_PATH", path)
}

func TestFmt(t *testing.T) {
	withView := strings.Replace(scoreRule, `"definition":{`, `"definition":{"id":"n1","isExpanded":true,`, 1)
	out, err := run(t, withView, "fmt", "--raw=false", "--indent=")
	if err != nil {
		t.Fatalf("fmt error = %v, want nil", err)
	}
	if got := strings.TrimSpace(out); got != scoreRule {
		t.Errorf("fmt output =\n%s\nwant\n%s", got, scoreRule)
	}

	out, err = run(t, withView, "fmt", "--raw")
	if err != nil {
		t.Fatalf("fmt --raw error = %v, want nil", err)
	}
	if strings.Contains(out, "isExpanded") {
		t.Errorf("fmt --raw kept presentation keys: %s", out)
	}

	if _, err := run(t, `{"structure":`, "fmt", "--raw=false"); err == nil {
		t.Error("fmt(malformed) error = nil, want error")
	}
}

func TestCheck(t *testing.T) {
	withCatalog(t)

	out, err := run(t, scoreRule, "check", "--remote=false")
	if err != nil {
		t.Fatalf("check error = %v, want nil", err)
	}
	if strings.TrimSpace(out) != "ok" {
		t.Errorf("check output = %q, want ok", out)
	}

	bad := strings.Replace(scoreRule, `"field":"score"`, `"field":"scroe"`, 1)
	out, err = run(t, bad, "check", "--remote=false")
	if err == nil {
		t.Fatal("check(unknown field) error = nil, want error")
	}
	if !strings.Contains(out, "error: ") {
		t.Errorf("check output = %q, want diagnostics", out)
	}
}

func TestCatalog(t *testing.T) {
	withCatalog(t)
	out, err := run(t, "", "catalog", "fields", "--type=number")
	if err != nil {
		t.Fatalf("catalog error = %v, want nil", err)
	}
	if !strings.Contains(out, "customer.age") || strings.Contains(out, "customer.name") {
		t.Errorf("catalog fields --type=number =\n%s", out)
	}

	out, err = run(t, "", "catalog", "functions", "--type=")
	if err != nil {
		t.Fatalf("catalog functions error = %v, want nil", err)
	}
	if !strings.Contains(out, "TEXT.CONCAT") || !strings.Contains(out, "(text x 2..5)") {
		t.Errorf("catalog functions =\n%s", out)
	}
}

func TestPreviewLines(t *testing.T) {
	withCatalog(t)
	rulePath := filepath.Join(t.TempDir(), "rule.json")
	if err := os.WriteFile(rulePath, []byte(scoreRule), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v, want nil", err)
	}

	records := "{\"score\": 11}\n\n{\"score\": \"x\"}\n{\"score\": 3}\n"
	out, err := run(t, records, "preview", rulePath, "--lines", "--resolve=false", "--record=-")
	if err != nil {
		t.Fatalf("preview error = %v, want nil", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("preview printed %d lines, want 3:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], `"matched":true`) {
		t.Errorf("line 1 = %s, want matched", lines[0])
	}
	if !strings.Contains(lines[1], `"error"`) {
		t.Errorf("line 2 = %s, want error entry", lines[1])
	}
	if !strings.Contains(lines[2], `"matched":false`) {
		t.Errorf("line 3 = %s, want unmatched", lines[2])
	}
}

func TestStoreLifecycle(t *testing.T) {
	dbFlag := "--db-url=sqlite://" + filepath.Join(t.TempDir(), "rules.db")

	if _, err := run(t, "", "store", "list", dbFlag); err == nil {
		t.Fatal("store list before migrate error = nil, want error")
	}
	if _, err := run(t, "", "migrate", dbFlag, "--status=false"); err != nil {
		t.Fatalf("migrate error = %v, want nil", err)
	}

	if _, err := run(t, scoreRule, "store", "create", dbFlag); err != nil {
		t.Fatalf("store create error = %v, want nil", err)
	}
	updated := strings.Replace(scoreRule, `"value":10`, `"value":20`, 1)
	if _, err := run(t, updated, "store", "update", dbFlag); err != nil {
		t.Fatalf("store update error = %v, want nil", err)
	}
	out, err := run(t, "", "store", "restore", "r1", "1", dbFlag)
	if err != nil {
		t.Fatalf("store restore error = %v, want nil", err)
	}
	if !strings.Contains(out, `"version": 3`) {
		t.Errorf("restore output = %s, want version 3", out)
	}

	out, err = run(t, "", "store", "versions", "r1", dbFlag)
	if err != nil {
		t.Fatalf("store versions error = %v, want nil", err)
	}
	if got := strings.Fields(out); strings.Join(got, ",") != "1,2,3" {
		t.Errorf("versions = %v, want [1 2 3]", got)
	}

	out, err = run(t, "", "store", "get", "r1", "--version=2", dbFlag)
	if err != nil {
		t.Fatalf("store get error = %v, want nil", err)
	}
	if !strings.Contains(out, `"value": 20`) {
		t.Errorf("get version 2 = %s, want value 20", out)
	}

	if _, err := run(t, "", "store", "get", "missing", "--version=0", dbFlag); err == nil {
		t.Error("store get(missing) error = nil, want error")
	}
}
