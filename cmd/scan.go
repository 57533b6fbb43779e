package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/vulnpack-cli/internal/npm"
	"github.com/khanhnv2901/vulnpack-cli/internal/pipeline"
	"github.com/khanhnv2901/vulnpack-cli/internal/registry"
)

var scanCmd = &cobra.Command{
	Use:   "scan <report.json>",
	Short: "Build an npm audit report from a technology fingerprinting report",
	Long: `Scan reads a wappalyzer-style fingerprinting report, keeps the detected
JavaScript libraries, validates them against the NPM registry and runs
npm audit over the resulting dependency set. The verbatim audit output is
saved next to the generated package.json.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputPath := args[0]

		workDir, err := resolveScanDir(resultsDir, inputPath, cliConfig.Scan.WorkDir)
		if err != nil {
			return err
		}

		timeout := time.Duration(cliConfig.Scan.TimeoutSecs) * time.Second
		p := &pipeline.Pipeline{
			Registry: registry.NewHTTPClient(cliConfig.Registry.BaseURL, timeout),
			NPM: &npm.CLIRunner{
				Bin:     cliConfig.NPM.Bin,
				Timeout: timeout,
				Logger:  logger,
			},
			Logger: logger,
			Out:    cmd.OutOrStdout(),
		}

		fmt.Fprintln(cmd.OutOrStdout(), colorInfo(fmt.Sprintf("Scanning %s", inputPath)))
		sum, err := p.Run(cmd.Context(), pipeline.Options{
			InputPath:           inputPath,
			WorkDir:             workDir,
			ManifestName:        cliConfig.Scan.OutputFile,
			IncludeUIFrameworks: cliConfig.Scan.IncludeUIFrameworks,
			MinConfidence:       cliConfig.Scan.MinConfidence,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, colorSuccess(fmt.Sprintf("Scan complete: %d technologies, %d audited, %d skipped",
			sum.TechnologyCount, len(sum.Validated), sum.SkippedCount)))
		if sum.AuditExitCode != 0 {
			fmt.Fprintln(out, colorWarn("npm audit reported vulnerabilities; see "+sum.ReportPath))
		} else {
			fmt.Fprintln(out, colorInfo("No vulnerabilities reported."))
		}

		return nil
	},
}

func init() {
	scanCmd.Flags().StringVarP(&cliConfig.Scan.OutputFile, "output-file", "o", cliConfig.Scan.OutputFile, "manifest file name written inside the scan directory")
	scanCmd.Flags().StringVar(&cliConfig.Scan.WorkDir, "work-dir", "", "scan working directory (default: <results_dir>/<input stem>)")
	scanCmd.Flags().BoolVar(&cliConfig.Scan.IncludeUIFrameworks, "include-ui-frameworks", false, "also audit technologies in the ui-frameworks category")
	scanCmd.Flags().StringVar(&cliConfig.Registry.BaseURL, "registry", cliConfig.Registry.BaseURL, "NPM registry base URL")
	scanCmd.Flags().StringVar(&cliConfig.NPM.Bin, "npm-bin", cliConfig.NPM.Bin, "npm executable to invoke")
	scanCmd.Flags().IntVarP(&cliConfig.Scan.TimeoutSecs, "timeout", "t", cliConfig.Scan.TimeoutSecs, "per-step timeout in seconds for registry and npm calls")
	scanCmd.Flags().IntVar(&cliConfig.Scan.MinConfidence, "min-confidence", cliConfig.Scan.MinConfidence, "minimum confidence for the detected-technologies table")
}
