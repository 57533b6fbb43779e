package manifest

import (
	"regexp"
	"strings"
)

// Candidate is a locally derived, not-yet-confirmed mapping from a detected
// technology to an NPM package name.
type Candidate struct {
	OriginalName     string
	Name             string // sanitized registry identifier
	RequestedVersion string
}

// Validated is a Candidate confirmed to exist in the registry.
type Validated struct {
	Candidate
	ResolvedVersion string
}

// DefaultAliases maps sanitized display names to the actual registry package
// name where the two diverge. The table is fixed configuration; callers that
// need different mappings pass their own map.
var DefaultAliases = map[string]string{
	"vue-js":       "vue",
	"moment-js":    "moment",
	"chart-js":     "chart.js",
	"socket-io":    "socket.io",
	"angularjs":    "angular",
	"backbone-js":  "backbone",
	"alpine-js":    "alpinejs",
	"highlight-js": "highlight.js",
}

var disallowedChars = regexp.MustCompile(`[^a-zA-Z0-9-_]`)

// Sanitize converts a technology display name into an NPM-style identifier:
// characters outside [a-zA-Z0-9-_] become dashes and the result is lowercased.
func Sanitize(name string) string {
	return strings.ToLower(disallowedChars.ReplaceAllString(name, "-"))
}

// Normalize derives a Candidate from a display name and optional detected
// version. The alias table is consulted after sanitization. The second return
// value is false when the name does not normalize to a usable identifier,
// which is a filtering decision rather than an error.
func Normalize(displayName, version string, aliases map[string]string) (Candidate, bool) {
	sanitized := Sanitize(displayName)
	if alias, ok := aliases[sanitized]; ok {
		sanitized = alias
	}
	if !validName(sanitized) {
		return Candidate{}, false
	}
	return Candidate{
		OriginalName:     displayName,
		Name:             sanitized,
		RequestedVersion: version,
	}, true
}

// validName rejects identifiers that are empty or consist only of filler
// characters left over from sanitization.
func validName(name string) bool {
	return strings.Trim(name, "-_") != ""
}
