package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/spf13/cobra"

	"github.com/khanhnv2901/vulnpack-cli/internal/manifest"
	"github.com/khanhnv2901/vulnpack-cli/internal/npm"
	consts "github.com/khanhnv2901/vulnpack-cli/internal/shared/constants"
)

// reportData is everything a completed scan directory tells us: the emitted
// manifest plus the raw and summarized audit output.
type reportData struct {
	ScanName     string
	Manifest     manifest.Manifest
	AuditOutput  string
	AuditSummary string
	GeneratedAt  string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a scan directory as a markdown or PDF report",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		if dir == "" {
			return fmt.Errorf("--dir is required")
		}

		format = strings.ToLower(format)
		if format != "md" && format != "pdf" {
			return fmt.Errorf("invalid format: %s (must be md or pdf)", format)
		}

		data, err := loadReportData(dir)
		if err != nil {
			return err
		}

		var content []byte
		filename := "report." + format
		switch format {
		case "md":
			content = []byte(renderMarkdown(data))
		case "pdf":
			content, err = renderPDF(data)
			if err != nil {
				return fmt.Errorf("failed to generate PDF report: %w", err)
			}
		}

		if output == "" {
			output = filepath.Join(dir, filename)
		}
		if err := os.WriteFile(output, content, consts.DefaultFilePerm); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Report generated: %s\n", output)
		fmt.Fprintf(cmd.OutOrStdout(), "Format: %s\n", format)
		fmt.Fprintf(cmd.OutOrStdout(), "Dependencies audited: %d\n", len(data.Manifest.Dependencies))
		return nil
	},
}

func loadReportData(dir string) (*reportData, error) {
	m, err := manifest.ReadFile(filepath.Join(dir, consts.DefaultManifestName))
	if err != nil {
		return nil, fmt.Errorf("load scan manifest: %w", err)
	}

	data := &reportData{
		ScanName:    filepath.Base(dir),
		Manifest:    m,
		GeneratedAt: time.Now().Format(time.RFC3339),
	}

	raw, err := os.ReadFile(filepath.Join(dir, consts.DefaultAuditReportName))
	if err != nil {
		// A scan that failed before the audit step still has a manifest;
		// report what exists.
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read audit report: %w", err)
		}
	} else {
		data.AuditOutput = string(raw)
		data.AuditSummary = npm.SummarizeAudit(data.AuditOutput)
	}

	return data, nil
}

func sortedDependencies(m manifest.Manifest) []string {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func renderMarkdown(data *reportData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Dependency Audit Report: %s\n\n", data.ScanName)
	fmt.Fprintf(&b, "Generated: %s\n\n", data.GeneratedAt)

	b.WriteString("## Audited Dependencies\n\n")
	if len(data.Manifest.Dependencies) == 0 {
		b.WriteString("No dependencies were validated for this scan.\n\n")
	} else {
		b.WriteString("| Package | Version |\n")
		b.WriteString("|---------|--------|\n")
		for _, name := range sortedDependencies(data.Manifest) {
			fmt.Fprintf(&b, "| %s | %s |\n", name, data.Manifest.Dependencies[name])
		}
		b.WriteString("\n")
	}

	b.WriteString("## Vulnerability Summary\n\n")
	switch {
	case data.AuditOutput == "":
		b.WriteString("No audit output was recorded for this scan.\n\n")
	case data.AuditSummary == "":
		b.WriteString("No vulnerabilities reported.\n\n")
	default:
		b.WriteString("```\n")
		b.WriteString(strings.TrimRight(data.AuditSummary, "\n"))
		b.WriteString("\n```\n\n")
	}

	if data.AuditOutput != "" {
		b.WriteString("## Full npm audit Output\n\n")
		b.WriteString("```\n")
		b.WriteString(strings.TrimRight(data.AuditOutput, "\n"))
		b.WriteString("\n```\n")
	}

	return b.String()
}

func renderPDF(data *reportData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	// Title
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, fmt.Sprintf("Dependency Audit Report: %s", data.ScanName), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", data.GeneratedAt), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Dependencies audited: %d", len(data.Manifest.Dependencies)), "", 1, "", false, 0, "")
	pdf.Ln(5)

	// Dependency table
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Audited Dependencies", "", 1, "", false, 0, "")
	if len(data.Manifest.Dependencies) == 0 {
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 6, "No dependencies were validated for this scan.", "", 1, "", false, 0, "")
	} else {
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(90, 6, "Package", "1", 0, "", false, 0, "")
		pdf.CellFormat(40, 6, "Version", "1", 1, "", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		for _, name := range sortedDependencies(data.Manifest) {
			if pdf.GetY() > 270 {
				pdf.AddPage()
			}
			pdf.CellFormat(90, 6, name, "1", 0, "", false, 0, "")
			pdf.CellFormat(40, 6, data.Manifest.Dependencies[name], "1", 1, "", false, 0, "")
		}
	}
	pdf.Ln(5)

	// Vulnerability summary
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Vulnerability Summary", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	switch {
	case data.AuditOutput == "":
		pdf.CellFormat(0, 6, "No audit output was recorded for this scan.", "", 1, "", false, 0, "")
	case data.AuditSummary == "":
		pdf.CellFormat(0, 6, "No vulnerabilities reported.", "", 1, "", false, 0, "")
	default:
		for _, line := range strings.Split(strings.TrimRight(data.AuditSummary, "\n"), "\n") {
			if pdf.GetY() > 270 {
				pdf.AddPage()
			}
			pdf.MultiCell(0, 5, line, "", "", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func init() {
	reportCmd.Flags().String("dir", "", "Scan directory containing package.json and audit-report.txt")
	reportCmd.Flags().String("format", "md", "Output format: md|pdf")
	reportCmd.Flags().String("output", "", "Report file path (default: <dir>/report.<format>)")
}
