package constants

import "io/fs"

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// DefaultManifestName is the package descriptor written into each scan directory.
	DefaultManifestName = "package.json"
	// DefaultAuditReportName holds the verbatim npm audit output for a scan.
	DefaultAuditReportName = "audit-report.txt"
	// ManifestPackageName is the synthetic package name declared in emitted manifests.
	ManifestPackageName = "vulnerability-check"
	// ManifestPackageVersion is the fixed version declared in emitted manifests.
	ManifestPackageVersion = "1.0.0"
)

const (
	// JavaScriptLibrariesSlug is the category tag that admits a technology into the manifest.
	JavaScriptLibrariesSlug = "javascript-libraries"
	// UIFrameworksSlug is the optional second category admitted with --include-ui-frameworks.
	UIFrameworksSlug = "ui-frameworks"
)
