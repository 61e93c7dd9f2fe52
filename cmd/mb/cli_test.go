package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/alfredjeanlab/modelbase/internal/server"
	"github.com/alfredjeanlab/modelbase/internal/store/memory"
	"github.com/alfredjeanlab/modelbase/internal/ui"
)

const bookSample = `{"title":"Dune","pages":412}`

func TestMain(m *testing.M) {
	ui.ForceNoColor()
	os.Exit(m.Run())
}

func startServer(t *testing.T) string {
	t.Helper()
	srv := server.NewServer(memory.New(), nil, server.Options{})
	ts := httptest.NewServer(srv.NewHTTPHandler(""))
	t.Cleanup(ts.Close)
	return ts.URL
}

// resetFlags restores every flag of cmd and its children to its default, so
// that values do not leak between runs of the shared command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// runCLI executes mb against url with stdin as input and returns stdout,
// stderr and the command error.
func runCLI(t *testing.T, url, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--http-url", url, "--transport", "http", "--token", ""}, args...))
	err := rootCmd.ExecuteContext(t.Context())
	resetFlags(rootCmd)
	return out.String(), errOut.String(), err
}

func mustRunCLI(t *testing.T, url, stdin string, args ...string) string {
	t.Helper()
	out, errOut, err := runCLI(t, url, stdin, args...)
	if err != nil {
		t.Fatalf("mb %s: %v\nstderr: %s", strings.Join(args, " "), err, errOut)
	}
	return out
}

func TestCLI_ModelLifecycle(t *testing.T) {
	url := startServer(t)

	out := mustRunCLI(t, url, bookSample, "model", "create", "books", "-")
	for _, want := range []string{"Name:        books", "Fields:      2", "title", "INTEGER"} {
		if !strings.Contains(out, want) {
			t.Errorf("model create output missing %q:\n%s", want, out)
		}
	}

	out = mustRunCLI(t, url, "", "model", "list", "--json")
	var models []struct {
		Definition struct {
			ModelName string `json:"modelName"`
		} `json:"definition"`
	}
	if err := json.Unmarshal([]byte(out), &models); err != nil {
		t.Fatalf("decode list: %v\n%s", err, out)
	}
	if len(models) != 1 || models[0].Definition.ModelName != "books" {
		t.Errorf("models = %+v", models)
	}

	out = mustRunCLI(t, url, "", "model", "show", "books", "-o", "yaml")
	if !strings.Contains(out, "modelName: books") {
		t.Errorf("yaml output missing modelName:\n%s", out)
	}

	out = mustRunCLI(t, url, `{"title":"Dune","pages":412,"tags":["scifi"]}`, "model", "replace", "books", "-")
	if !strings.Contains(out, "ARRAY<STRING>") {
		t.Errorf("replace output missing array field:\n%s", out)
	}

	out = mustRunCLI(t, url, "", "model", "events", "books")
	if !strings.Contains(out, "modelbase.model.created") || !strings.Contains(out, "modelbase.model.updated") {
		t.Errorf("events output:\n%s", out)
	}

	out = mustRunCLI(t, url, "", "model", "delete", "books")
	if !strings.Contains(out, "Deleted model books") {
		t.Errorf("delete output = %q", out)
	}

	if _, _, err := runCLI(t, url, "", "model", "show", "books"); err == nil {
		t.Error("show after delete succeeded")
	}
}

func TestCLI_ModelCreateDryRun(t *testing.T) {
	url := startServer(t)

	out := mustRunCLI(t, url, bookSample, "model", "create", "books", "-", "--dry-run")
	if !strings.Contains(out, "Model:       books") {
		t.Errorf("dry run output:\n%s", out)
	}
	out = mustRunCLI(t, url, "", "model", "list")
	if !strings.Contains(out, "0 models") {
		t.Errorf("dry run stored a model:\n%s", out)
	}
}

func TestCLI_Documents(t *testing.T) {
	url := startServer(t)
	mustRunCLI(t, url, bookSample, "model", "create", "books", "-")

	out := mustRunCLI(t, url, `{"id":"dune","title":"Dune","pages":412}`, "doc", "create", "books", "-")
	if !strings.Contains(out, `"id": "dune"`) {
		t.Errorf("doc create output:\n%s", out)
	}
	mustRunCLI(t, url, `{"id":"emma","title":"Emma","pages":90}`, "doc", "create", "books", "-")

	out = mustRunCLI(t, url, "", "doc", "list", "books", "--filter", ".pages > 100", "--json")
	var page struct {
		Documents []map[string]any `json:"documents"`
		Total     int              `json:"total"`
	}
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatalf("decode page: %v\n%s", err, out)
	}
	if page.Total != 1 || page.Documents[0]["id"] != "dune" {
		t.Errorf("page = %+v", page)
	}

	out = mustRunCLI(t, url, "", "doc", "list", "books")
	if !strings.Contains(out, "2 documents (2 total)") {
		t.Errorf("doc list table:\n%s", out)
	}

	out = mustRunCLI(t, url, `{"pages":413}`, "doc", "update", "books", "dune", "-")
	if !strings.Contains(out, `"pages": 413`) || !strings.Contains(out, `"title": "Dune"`) {
		t.Errorf("doc update output:\n%s", out)
	}

	out = mustRunCLI(t, url, "", "doc", "get", "books", "dune", "-o", "yaml")
	if !strings.Contains(out, "pages: 413") {
		t.Errorf("doc get yaml:\n%s", out)
	}

	out = mustRunCLI(t, url, "", "doc", "delete", "books", "emma")
	if !strings.Contains(out, "Deleted document emma from books") {
		t.Errorf("doc delete output = %q", out)
	}
}

func TestCLI_RejectedDocument(t *testing.T) {
	url := startServer(t)
	mustRunCLI(t, url, bookSample, "model", "create", "books", "-")

	_, errOut, err := runCLI(t, url, `{"title":"Emma","pages":"many"}`, "doc", "create", "books", "-")
	if err == nil {
		t.Fatal("invalid document was accepted")
	}
	if !strings.Contains(errOut, "Field 'pages' is not a valid integer") {
		t.Errorf("stderr missing validator log:\n%s", errOut)
	}

	out, _, err := runCLI(t, url, `{"title":"Emma","pages":"many"}`, "doc", "validate", "books", "-")
	if !errors.Is(err, errInvalid) {
		t.Fatalf("validate error = %v, want errInvalid", err)
	}
	if !strings.Contains(out, "invalid") || !strings.Contains(out, "Field 'pages' is not a valid integer") {
		t.Errorf("validate output:\n%s", out)
	}

	out = mustRunCLI(t, url, `{"title":"Emma"}`, "doc", "validate", "books", "-")
	if !strings.Contains(out, "valid") || !strings.Contains(out, "Field 'pages' is missing") {
		t.Errorf("advisory validate output:\n%s", out)
	}
}

func TestCLI_InferOffline(t *testing.T) {
	// No server: infer must not connect anywhere.
	out := mustRunCLI(t, "http://127.0.0.1:1", `{"title":"Dune","author":{"name":"Herbert"},"tags":["a"]}`, "infer", "books", "-")
	for _, want := range []string{"Model:       books", "author", "OBJECT", "    name", "ARRAY<STRING>"} {
		if !strings.Contains(out, want) {
			t.Errorf("infer output missing %q:\n%s", want, out)
		}
	}

	if _, _, err := runCLI(t, "http://127.0.0.1:1", `{"tags":[]}`, "infer", "books", "-"); err == nil {
		t.Error("infer of an empty array succeeded")
	}
}

func TestCLI_CheckOffline(t *testing.T) {
	def := filepath.Join(t.TempDir(), "books.json")
	if err := os.WriteFile(def, []byte(`{"modelName":"books","fields":[{"name":"title","type":"STRING"},{"name":"pages","type":"INTEGER"}]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	out := mustRunCLI(t, "http://127.0.0.1:1", `{"title":"Dune","pages":412}`, "check", def, "-")
	if !strings.HasPrefix(out, "valid") {
		t.Errorf("check output:\n%s", out)
	}

	mustRunCLI(t, "http://127.0.0.1:1", `{"title":"Dune"}`, "check", def, "-")

	_, _, err := runCLI(t, "http://127.0.0.1:1", `{"title":"Dune"}`, "check", def, "-", "--strict")
	if !errors.Is(err, errInvalid) {
		t.Errorf("strict check error = %v, want errInvalid", err)
	}
}

func TestCLI_ExportImport(t *testing.T) {
	src := startServer(t)
	mustRunCLI(t, src, bookSample, "model", "create", "books", "-")
	mustRunCLI(t, src, `{"id":"dune","title":"Dune","pages":412}`, "doc", "create", "books", "-")

	backup := filepath.Join(t.TempDir(), "backup.jsonl")
	mustRunCLI(t, src, "", "export", backup)
	if _, err := os.Stat(backup + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary export file left behind: %v", err)
	}

	dst := startServer(t)
	out := mustRunCLI(t, dst, "", "import", backup)
	if !strings.Contains(out, "Imported 1 models and 1 documents (0 skipped)") {
		t.Errorf("import output = %q", out)
	}
	out = mustRunCLI(t, dst, "", "doc", "get", "books", "dune")
	if !strings.Contains(out, `"title": "Dune"`) {
		t.Errorf("restored document:\n%s", out)
	}
}

func TestCLI_Health(t *testing.T) {
	url := startServer(t)
	out := mustRunCLI(t, url, "", "health")
	if strings.TrimSpace(out) != "Health: ok" {
		t.Errorf("health output = %q", out)
	}
}

func TestCLI_UnknownFormatAndTransport(t *testing.T) {
	url := startServer(t)
	if _, _, err := runCLI(t, url, "", "model", "list", "-o", "xml"); err == nil {
		t.Error("unknown output format accepted")
	}
	if _, _, err := runCLI(t, url, "", "model", "list", "--transport", "carrier-pigeon"); err == nil {
		t.Error("unknown transport accepted")
	}
}
