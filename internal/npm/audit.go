package npm

import (
	"regexp"
	"strings"
)

// skipMarkers are remediation hints filtered out of the console summary.
// The verbatim output is preserved in the report file regardless.
var skipMarkers = []string{"fix available", "Will install", "node_modules/"}

// severityCountPattern matches the closing count line in both phrasings npm
// uses: "2 moderate severity vulnerabilities" and
// "2 vulnerabilities (1 moderate, 1 high)".
var severityCountPattern = regexp.MustCompile(`^\d+ .*vulnerabilit(y|ies)`)

// SummarizeAudit extracts the vulnerability lines from npm audit's human
// output: each affected package line is prefixed with [VULNERABLE], advisory
// detail lines are kept, and the closing severity count ends the summary.
// Returns the empty string when the output carries no vulnerability section.
func SummarizeAudit(output string) string {
	var (
		summary       []string
		severityCount string
		capturing     bool
	)

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(line, "# npm audit report") {
			continue
		}
		if severityCountPattern.MatchString(trimmed) {
			severityCount = trimmed
			break
		}
		if trimmed == "" {
			if capturing && len(summary) > 0 {
				summary = append(summary, "")
			}
			continue
		}
		if containsAny(line, skipMarkers) {
			continue
		}
		// Package heading lines look like "lodash  <=4.17.20" - no leading
		// indent, columns separated by two spaces.
		if !strings.HasPrefix(line, " ") && strings.Contains(line, "  ") {
			summary = append(summary, "[VULNERABLE] "+trimmed)
			capturing = true
			continue
		}
		if strings.Contains(line, "Severity:") || capturing {
			summary = append(summary, trimmed)
		}
	}

	if len(summary) == 0 && severityCount == "" {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(summary, "\n"))
	if severityCount != "" {
		if len(summary) > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(severityCount)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
