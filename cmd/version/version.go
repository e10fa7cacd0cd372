package version

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/logicscan/pkg/shared/config"
)

var (
	AppConfig     *config.Config
	CoreVersion   = "unknown"
	GolangVersion = runtime.Version()
	BuildTime     = "unknown"

	asJSON bool
)

// Versions holds version information of the binary.
type Versions struct {
	Version       string `json:"version"`
	GolangVersion string `json:"golang_version"`
	BuildTime     string `json:"build_time"`
	LLMProvider   string `json:"llm_provider,omitempty"`
	LLMModel      string `json:"llm_model,omitempty"`
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// NewVersionCmd creates a new cobra.Command for the version command.
func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "version [--json]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Print the version number of the application",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := Versions{
				Version:       CoreVersion,
				GolangVersion: GolangVersion,
				BuildTime:     BuildTime,
			}
			if AppConfig != nil {
				v.LLMProvider = AppConfig.LLM.Provider
				v.LLMModel = AppConfig.LLM.Model
			}
			return printVersionInfo(cmd, &v)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the version information as JSON.")
	return cmd
}

// printVersionInfo prints the version information.
func printVersionInfo(cmd *cobra.Command, v *Versions) error {
	out := cmd.OutOrStdout()
	if asJSON {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprintf(out, "Core Version: v%s\n", v.Version)
	if v.LLMProvider != "" || v.LLMModel != "" {
		fmt.Fprintf(out, "LLM: %s %s\n", v.LLMProvider, v.LLMModel)
	}
	fmt.Fprintf(out, "Go Version: %s\n", v.GolangVersion)
	fmt.Fprintf(out, "Build Time: %s\n", v.BuildTime)
	return nil
}
