package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/khanhnv2901/vulnpack-cli/internal/npm"
	"github.com/khanhnv2901/vulnpack-cli/internal/registry"
)

type fakeRegistry struct {
	packages map[string]*registry.PackageInfo
	errs     map[string]error
	lookups  []string
}

func (f *fakeRegistry) Lookup(_ context.Context, name string) (*registry.PackageInfo, error) {
	f.lookups = append(f.lookups, name)
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	if info, ok := f.packages[name]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("%w: %s", registry.ErrNotFound, name)
}

type fakeRunner struct {
	installErr  error
	auditResult npm.AuditResult
	auditErr    error
	installDirs []string
	auditDirs   []string
}

func (f *fakeRunner) Install(_ context.Context, dir string) error {
	f.installDirs = append(f.installDirs, dir)
	return f.installErr
}

func (f *fakeRunner) Audit(_ context.Context, dir string) (npm.AuditResult, error) {
	f.auditDirs = append(f.auditDirs, dir)
	return f.auditResult, f.auditErr
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "site.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write input fixture: %v", err)
	}
	return path
}

func knownPackages(names ...string) map[string]*registry.PackageInfo {
	pkgs := make(map[string]*registry.PackageInfo, len(names))
	for _, n := range names {
		pkgs[n] = &registry.PackageInfo{Name: n, Versions: []string{"1.0.0"}, Latest: "1.0.0"}
	}
	return pkgs
}

func newPipeline(t *testing.T, reg *fakeRegistry, runner *fakeRunner, out *bytes.Buffer) *Pipeline {
	t.Helper()
	return &Pipeline{
		Registry: reg,
		NPM:      runner,
		Logger:   zaptest.NewLogger(t).Sugar(),
		Out:      out,
	}
}

func readDependencies(t *testing.T, manifestPath string) map[string]string {
	t.Helper()
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m struct {
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	return m.Dependencies
}

func TestRunIncludesConfirmedLibrary(t *testing.T) {
	input := writeInput(t, `{"technologies": [
		{"name": "Lodash", "categories": [{"slug": "javascript-libraries"}]}
	]}`)
	reg := &fakeRegistry{packages: knownPackages("lodash")}
	runner := &fakeRunner{}
	var out bytes.Buffer

	sum, err := newPipeline(t, reg, runner, &out).Run(context.Background(), Options{
		InputPath: input,
		WorkDir:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deps := readDependencies(t, sum.ManifestPath)
	if deps["lodash"] != "latest" {
		t.Fatalf("expected lodash -> latest, got %q", deps["lodash"])
	}
	if !strings.Contains(out.String(), "Sanitized package name: Lodash -> lodash") {
		t.Fatalf("expected sanitization line, got:\n%s", out.String())
	}
}

func TestRunSkipsNonLibraryCategories(t *testing.T) {
	input := writeInput(t, `{"technologies": [
		{"name": "Contact Form 7", "categories": [{"slug": "cms"}]},
		{"name": "Lodash", "categories": [{"slug": "javascript-libraries"}]}
	]}`)
	reg := &fakeRegistry{packages: knownPackages("lodash")}
	runner := &fakeRunner{}
	var out bytes.Buffer

	sum, err := newPipeline(t, reg, runner, &out).Run(context.Background(), Options{
		InputPath: input,
		WorkDir:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deps := readDependencies(t, sum.ManifestPath)
	if len(deps) != 1 {
		t.Fatalf("expected only lodash in manifest, got %v", deps)
	}
	if !strings.Contains(out.String(), "Skipping package not in 'javascript-libraries': Contact Form 7") {
		t.Fatalf("expected skip line, got:\n%s", out.String())
	}
	if sum.SkippedCount != 1 {
		t.Fatalf("expected 1 skip, got %d", sum.SkippedCount)
	}
}

func TestRunKeepsPublishedVersion(t *testing.T) {
	input := writeInput(t, `{"technologies": [
		{"name": "jQuery", "version": "3.7.1", "categories": [{"slug": "javascript-libraries"}]}
	]}`)
	reg := &fakeRegistry{packages: map[string]*registry.PackageInfo{
		"jquery": {Name: "jquery", Versions: []string{"3.7.0", "3.7.1"}, Latest: "3.7.1"},
	}}
	runner := &fakeRunner{}
	var out bytes.Buffer

	sum, err := newPipeline(t, reg, runner, &out).Run(context.Background(), Options{
		InputPath: input,
		WorkDir:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deps := readDependencies(t, sum.ManifestPath)
	if deps["jquery"] != "3.7.1" {
		t.Fatalf("expected jquery -> 3.7.1, got %q", deps["jquery"])
	}
}

func TestRunFallsBackToLatest(t *testing.T) {
	tests := []struct {
		name    string
		version string
	}{
		{name: "absent", version: ""},
		{name: "not applicable", version: "N/A"},
		{name: "unpublished", version: "99.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := writeInput(t, fmt.Sprintf(`{"technologies": [
				{"name": "Lodash", "version": %q, "categories": [{"slug": "javascript-libraries"}]}
			]}`, tt.version))
			reg := &fakeRegistry{packages: knownPackages("lodash")}
			var out bytes.Buffer

			sum, err := newPipeline(t, reg, &fakeRunner{}, &out).Run(context.Background(), Options{
				InputPath: input,
				WorkDir:   t.TempDir(),
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			deps := readDependencies(t, sum.ManifestPath)
			if deps["lodash"] != "latest" {
				t.Fatalf("expected fallback to latest, got %q", deps["lodash"])
			}
		})
	}
}

func TestRunMissingInputFile(t *testing.T) {
	workDir := t.TempDir()
	reg := &fakeRegistry{}
	runner := &fakeRunner{}
	var out bytes.Buffer

	_, err := newPipeline(t, reg, runner, &out).Run(context.Background(), Options{
		InputPath: filepath.Join(t.TempDir(), "absent.json"),
		WorkDir:   workDir,
	})

	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(workDir, "package.json")); !os.IsNotExist(err) {
		t.Fatal("no manifest must be written for invalid input")
	}
	if len(runner.installDirs) != 0 || len(runner.auditDirs) != 0 {
		t.Fatal("package manager must not run for invalid input")
	}
}

func TestRunDropsSingleFailedLookup(t *testing.T) {
	var techs []string
	for _, name := range []string{"alpha", "bravo", "charlie", "delta", "echo"} {
		techs = append(techs, fmt.Sprintf(`{"name": %q, "categories": [{"slug": "javascript-libraries"}]}`, name))
	}
	input := writeInput(t, `{"technologies": [`+strings.Join(techs, ",")+`]}`)

	reg := &fakeRegistry{
		packages: knownPackages("alpha", "bravo", "delta", "echo"),
		errs:     map[string]error{"charlie": errors.New("context deadline exceeded")},
	}
	var out bytes.Buffer

	sum, err := newPipeline(t, reg, &fakeRunner{}, &out).Run(context.Background(), Options{
		InputPath: input,
		WorkDir:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("a single lookup failure must not abort the run: %v", err)
	}

	deps := readDependencies(t, sum.ManifestPath)
	if len(deps) != 4 {
		t.Fatalf("expected 4 dependencies, got %v", deps)
	}
	if _, ok := deps["charlie"]; ok {
		t.Fatal("failed lookup must not reach the manifest")
	}
	if !strings.Contains(out.String(), "Skipping unavailable package: charlie") {
		t.Fatalf("expected skip line for charlie, got:\n%s", out.String())
	}
}

func TestRunExcludesUnusableNames(t *testing.T) {
	input := writeInput(t, `{"technologies": [
		{"name": "!!!", "categories": [{"slug": "javascript-libraries"}]}
	]}`)
	reg := &fakeRegistry{}
	var out bytes.Buffer

	sum, err := newPipeline(t, reg, &fakeRunner{}, &out).Run(context.Background(), Options{
		InputPath: input,
		WorkDir:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(reg.lookups) != 0 {
		t.Fatal("unusable names must not reach the registry")
	}
	if deps := readDependencies(t, sum.ManifestPath); len(deps) != 0 {
		t.Fatalf("expected empty manifest, got %v", deps)
	}
}

func TestRunEmptyDependencySetStillAudits(t *testing.T) {
	input := writeInput(t, `{"technologies": []}`)
	runner := &fakeRunner{}
	var out bytes.Buffer

	sum, err := newPipeline(t, &fakeRegistry{}, runner, &out).Run(context.Background(), Options{
		InputPath: input,
		WorkDir:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deps := readDependencies(t, sum.ManifestPath); len(deps) != 0 {
		t.Fatalf("expected empty dependencies, got %v", deps)
	}
	if len(runner.installDirs) != 1 || len(runner.auditDirs) != 1 {
		t.Fatal("install and audit must still run for an empty manifest")
	}
}

func TestRunInstallFailureIsFatal(t *testing.T) {
	input := writeInput(t, `{"technologies": []}`)
	workDir := t.TempDir()
	runner := &fakeRunner{installErr: errors.New("lockfile step failed")}
	var out bytes.Buffer

	_, err := newPipeline(t, &fakeRegistry{}, runner, &out).Run(context.Background(), Options{
		InputPath: input,
		WorkDir:   workDir,
	})

	var installErr *DependencyInstallError
	if !errors.As(err, &installErr) {
		t.Fatalf("expected DependencyInstallError, got %v", err)
	}
	if len(runner.auditDirs) != 0 {
		t.Fatal("audit must not run after a failed install")
	}
	if _, err := os.Stat(filepath.Join(workDir, "audit-report.txt")); !os.IsNotExist(err) {
		t.Fatal("no report file must be written after a failed install")
	}
}

func TestRunAuditExecutionFailureIsFatal(t *testing.T) {
	input := writeInput(t, `{"technologies": []}`)
	runner := &fakeRunner{auditErr: errors.New("npm: permission denied")}
	var out bytes.Buffer

	_, err := newPipeline(t, &fakeRegistry{}, runner, &out).Run(context.Background(), Options{
		InputPath: input,
		WorkDir:   t.TempDir(),
	})

	var auditErr *AuditExecutionError
	if !errors.As(err, &auditErr) {
		t.Fatalf("expected AuditExecutionError, got %v", err)
	}
}

func TestRunSavesAuditReportVerbatim(t *testing.T) {
	input := writeInput(t, `{"technologies": [
		{"name": "Lodash", "categories": [{"slug": "javascript-libraries"}]}
	]}`)
	auditOutput := "# npm audit report\n\nlodash  <=4.17.20\nSeverity: high\n\n1 high severity vulnerability\n"
	runner := &fakeRunner{auditResult: npm.AuditResult{Output: auditOutput, ExitCode: 1}}
	reg := &fakeRegistry{packages: knownPackages("lodash")}
	var out bytes.Buffer

	sum, err := newPipeline(t, reg, runner, &out).Run(context.Background(), Options{
		InputPath: input,
		WorkDir:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("findings must not fail the run: %v", err)
	}

	saved, err := os.ReadFile(sum.ReportPath)
	if err != nil {
		t.Fatalf("read audit report: %v", err)
	}
	if string(saved) != auditOutput {
		t.Fatalf("report must be verbatim, got:\n%s", saved)
	}
	if sum.AuditExitCode != 1 {
		t.Fatalf("expected audit exit code 1, got %d", sum.AuditExitCode)
	}
	if !strings.Contains(out.String(), "[VULNERABLE] lodash  <=4.17.20") {
		t.Fatalf("expected filtered summary in transcript, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Saved audit report to audit-report.txt.") {
		t.Fatalf("expected save line, got:\n%s", out.String())
	}
}

func TestRunIncludeUIFrameworks(t *testing.T) {
	input := writeInput(t, `{"technologies": [
		{"name": "Bootstrap", "categories": [{"slug": "ui-frameworks"}]}
	]}`)
	reg := &fakeRegistry{packages: knownPackages("bootstrap")}

	t.Run("excluded by default", func(t *testing.T) {
		var out bytes.Buffer
		sum, err := newPipeline(t, reg, &fakeRunner{}, &out).Run(context.Background(), Options{
			InputPath: input,
			WorkDir:   t.TempDir(),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if deps := readDependencies(t, sum.ManifestPath); len(deps) != 0 {
			t.Fatalf("ui-frameworks must be excluded by default, got %v", deps)
		}
	})

	t.Run("included when enabled", func(t *testing.T) {
		var out bytes.Buffer
		sum, err := newPipeline(t, reg, &fakeRunner{}, &out).Run(context.Background(), Options{
			InputPath:           input,
			WorkDir:             t.TempDir(),
			IncludeUIFrameworks: true,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if deps := readDependencies(t, sum.ManifestPath); deps["bootstrap"] != "latest" {
			t.Fatalf("expected bootstrap -> latest, got %v", deps)
		}
	})
}

func TestRunPrintsTechnologiesTable(t *testing.T) {
	input := writeInput(t, `{"technologies": [
		{"name": "jQuery", "version": "3.7.1", "confidence": 100, "categories": [{"slug": "javascript-libraries"}]},
		{"name": "Maybe", "confidence": 40, "categories": [{"slug": "javascript-libraries"}]}
	]}`)
	reg := &fakeRegistry{packages: knownPackages("jquery", "maybe")}
	var out bytes.Buffer

	_, err := newPipeline(t, reg, &fakeRunner{}, &out).Run(context.Background(), Options{
		InputPath:     input,
		WorkDir:       t.TempDir(),
		MinConfidence: 100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	transcript := out.String()
	if !strings.Contains(transcript, "Technologies detected:") {
		t.Fatalf("expected technologies table, got:\n%s", transcript)
	}
	if !strings.Contains(transcript, "jQuery") {
		t.Fatalf("expected jQuery row, got:\n%s", transcript)
	}
	// Low-confidence rows are excluded from the table but still flow
	// through the rest of the pipeline.
	if strings.Contains(strings.Split(transcript, "Sanitized")[0], "Maybe") {
		t.Fatalf("low-confidence technology must not appear in the table, got:\n%s", transcript)
	}
}
