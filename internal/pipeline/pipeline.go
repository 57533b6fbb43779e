// Package pipeline runs the four stages that turn a fingerprinting report
// into an npm audit report: load, filter/normalize, validate against the
// registry, emit the manifest and delegate to the package manager.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/khanhnv2901/vulnpack-cli/internal/fingerprint"
	"github.com/khanhnv2901/vulnpack-cli/internal/manifest"
	"github.com/khanhnv2901/vulnpack-cli/internal/npm"
	"github.com/khanhnv2901/vulnpack-cli/internal/registry"
	consts "github.com/khanhnv2901/vulnpack-cli/internal/shared/constants"
)

// Options configures a single run.
type Options struct {
	InputPath           string
	WorkDir             string // scan working directory; must not be shared by concurrent runs
	ManifestName        string // defaults to package.json
	IncludeUIFrameworks bool   // additionally admit the ui-frameworks category
	MinConfidence       int    // threshold for the informational technologies table
	Aliases             map[string]string
}

// Summary reports what a run produced.
type Summary struct {
	TechnologyCount int
	SkippedCount    int
	Candidates      []manifest.Candidate
	Validated       []manifest.Validated
	ManifestPath    string
	ReportPath      string
	AuditExitCode   int
	AuditSummary    string
}

// Pipeline wires the registry and package-manager collaborators. Out carries
// the user-visible transcript; Logger carries operational detail.
type Pipeline struct {
	Registry registry.Client
	NPM      npm.Runner
	Logger   *zap.SugaredLogger
	Out      io.Writer
}

func (p *Pipeline) out() io.Writer {
	if p.Out != nil {
		return p.Out
	}
	return os.Stdout
}

func (p *Pipeline) logger() *zap.SugaredLogger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop().Sugar()
}

func (p *Pipeline) printf(format string, args ...any) {
	fmt.Fprintf(p.out(), format+"\n", args...)
}

// Run executes the pipeline. Per-candidate conditions (category mismatch,
// unusable name, registry miss) are handled by exclusion and logging; only
// the three fatal error kinds terminate the run.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.ManifestName == "" {
		opts.ManifestName = consts.DefaultManifestName
	}
	if opts.Aliases == nil {
		opts.Aliases = manifest.DefaultAliases
	}

	rep, err := fingerprint.Load(opts.InputPath)
	if err != nil {
		return nil, &InputError{Path: opts.InputPath, Err: err}
	}

	if err := os.MkdirAll(opts.WorkDir, consts.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("create scan directory: %w", err)
	}

	sum := &Summary{TechnologyCount: len(rep.Technologies)}

	p.printTechnologies(rep.Technologies, opts.MinConfidence)
	sum.Candidates = p.filterTechnologies(rep.Technologies, opts, sum)
	sum.Validated = p.validateCandidates(ctx, sum.Candidates)

	m := manifest.New(sum.Validated)
	sum.ManifestPath = filepath.Join(opts.WorkDir, opts.ManifestName)
	if err := m.WriteFile(sum.ManifestPath); err != nil {
		return sum, err
	}
	p.printf("Generated %s.", opts.ManifestName)

	p.printf("Creating package-lock.json...")
	p.printf("Installing dependencies...")
	if err := p.NPM.Install(ctx, opts.WorkDir); err != nil {
		return sum, &DependencyInstallError{Err: err}
	}

	p.printf("Running npm audit...")
	audit, err := p.NPM.Audit(ctx, opts.WorkDir)
	if err != nil {
		return sum, &AuditExecutionError{Err: err}
	}
	sum.AuditExitCode = audit.ExitCode

	sum.ReportPath = filepath.Join(opts.WorkDir, consts.DefaultAuditReportName)
	if err := os.WriteFile(sum.ReportPath, []byte(audit.Output), consts.DefaultFilePerm); err != nil {
		return sum, fmt.Errorf("write audit report: %w", err)
	}

	sum.AuditSummary = npm.SummarizeAudit(audit.Output)
	if sum.AuditSummary != "" {
		p.printf("%s", sum.AuditSummary)
	}
	p.printf("Saved audit report to %s.", consts.DefaultAuditReportName)

	return sum, nil
}

// printTechnologies writes the informational table of detections at or above
// the confidence threshold.
func (p *Pipeline) printTechnologies(techs []fingerprint.Technology, minConfidence int) {
	var rows []fingerprint.Technology
	for _, t := range techs {
		if t.Confidence >= minConfidence {
			rows = append(rows, t)
		}
	}
	if len(rows) == 0 {
		return
	}

	p.printf("Technologies detected:")
	tw := tabwriter.NewWriter(p.out(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION")
	for _, t := range rows {
		version := t.Version
		if version == "" {
			version = "N/A"
		}
		fmt.Fprintf(tw, "%s\t%s\n", t.Name, version)
	}
	_ = tw.Flush()
}

// filterTechnologies applies the category inclusion rule and name
// normalization, reporting every exclusion.
func (p *Pipeline) filterTechnologies(techs []fingerprint.Technology, opts Options, sum *Summary) []manifest.Candidate {
	log := p.logger()
	candidates := make([]manifest.Candidate, 0, len(techs))

	for _, tech := range techs {
		included := tech.HasCategory(consts.JavaScriptLibrariesSlug) ||
			(opts.IncludeUIFrameworks && tech.HasCategory(consts.UIFrameworksSlug))
		if !included {
			sum.SkippedCount++
			p.printf("Skipping package not in '%s': %s", consts.JavaScriptLibrariesSlug, tech.Name)
			continue
		}

		cand, ok := manifest.Normalize(tech.Name, tech.Version, opts.Aliases)
		if !ok {
			sum.SkippedCount++
			p.printf("Skipping package with unusable name: %s", tech.Name)
			log.Infow("dropped candidate after normalization", "technology", tech.Name)
			continue
		}
		p.printf("Sanitized package name: %s -> %s", cand.OriginalName, cand.Name)
		candidates = append(candidates, cand)
	}

	return candidates
}

// validateCandidates confirms each candidate against the registry and
// resolves its version. Lookup failures of any kind drop the single
// candidate and never abort the run.
func (p *Pipeline) validateCandidates(ctx context.Context, candidates []manifest.Candidate) []manifest.Validated {
	log := p.logger()
	validated := make([]manifest.Validated, 0, len(candidates))

	for _, cand := range candidates {
		info, err := p.Registry.Lookup(ctx, cand.Name)
		if err != nil {
			p.printf("Skipping unavailable package: %s", cand.Name)
			if errors.Is(err, registry.ErrNotFound) {
				log.Infow("package not in registry", "package", cand.Name)
			} else {
				log.Warnw("registry lookup failed", "package", cand.Name, "error", err)
			}
			continue
		}

		validated = append(validated, manifest.Validated{
			Candidate:       cand,
			ResolvedVersion: resolveVersion(cand.RequestedVersion, info),
		})
	}

	return validated
}

// resolveVersion keeps the detected version only when the registry actually
// published it; anything else falls back to the latest tag. Near-miss
// versions are not fuzzy-matched.
func resolveVersion(requested string, info *registry.PackageInfo) string {
	if requested == "" || requested == "N/A" {
		return "latest"
	}
	if info.HasVersion(requested) {
		return requested
	}
	return "latest"
}
