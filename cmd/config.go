package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/khanhnv2901/vulnpack-cli/internal/npm"
	"github.com/khanhnv2901/vulnpack-cli/internal/registry"
	consts "github.com/khanhnv2901/vulnpack-cli/internal/shared/constants"
)

const (
	defaultTimeoutSeconds = 30
	defaultMinConfidence  = 100
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	Registry RegistryConfig
	NPM      NPMConfig
	Scan     ScanRuntimeConfig
}

// RegistryConfig groups registry connectivity options.
type RegistryConfig struct {
	BaseURL string
}

// NPMConfig groups package-manager invocation options.
type NPMConfig struct {
	Bin string
}

// ScanRuntimeConfig consolidates flag-driven settings for the scan command.
type ScanRuntimeConfig struct {
	OutputFile          string
	WorkDir             string
	IncludeUIFrameworks bool
	TimeoutSecs         int
	MinConfidence       int
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		Registry: RegistryConfig{BaseURL: registry.DefaultBaseURL},
		NPM:      NPMConfig{Bin: npm.DefaultBin},
		Scan: ScanRuntimeConfig{
			OutputFile:    consts.DefaultManifestName,
			TimeoutSecs:   defaultTimeoutSeconds,
			MinConfidence: defaultMinConfidence,
		},
	}
}

// applyConfigDefaults merges config file defaults into the runtime config when
// the user did not explicitly override the corresponding flag.
func applyConfigDefaults(_ *cobra.Command) {
	if viper.IsSet("registry.base_url") {
		setStringFlagIfUnset(scanCmd.Flags(), "registry", viper.GetString("registry.base_url"))
	}

	if viper.IsSet("npm.bin") {
		setStringFlagIfUnset(scanCmd.Flags(), "npm-bin", viper.GetString("npm.bin"))
	}

	if viper.IsSet("defaults.timeout_secs") {
		applyIntDefault(scanCmd.Flags(), "timeout", viper.GetInt("defaults.timeout_secs"), func(v int) {
			cliConfig.Scan.TimeoutSecs = v
		})
	}

	if viper.IsSet("defaults.min_confidence") {
		applyIntDefault(scanCmd.Flags(), "min-confidence", viper.GetInt("defaults.min_confidence"), func(v int) {
			cliConfig.Scan.MinConfidence = v
		})
	}
}

func applyIntDefault(flags *pflag.FlagSet, name string, value int, setter func(int)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func setStringFlagIfUnset(flags *pflag.FlagSet, name, value string) {
	if flags == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag == nil || flag.Changed {
		return
	}
	_ = flag.Value.Set(value)
}
