package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/logicscan/cmd/remediate"
	"github.com/scan-io-git/logicscan/cmd/scan"
	"github.com/scan-io-git/logicscan/cmd/version"
	"github.com/scan-io-git/logicscan/pkg/shared/config"
)

var (
	cfgFile   string
	AppConfig *config.Config
	rootCmd   = &cobra.Command{
		Use:                   "logicscan [command]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Logicscan looks for business logic flaws with an LLM reviewer.",
		Long: `Logicscan triages the files of a repository by risk, asks a language model to review
	the riskiest ones for business logic and access control flaws, and checks the permission
	rules the model inferred for contradictions.
	`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $LOGICSCAN_CONFIG or config.yml)")
	rootCmd.AddCommand(scan.ScanCmd)
	rootCmd.AddCommand(remediate.RemediateCmd)
	rootCmd.AddCommand(version.NewVersionCmd())
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		return 1
	}
	return 0
}

func initConfig() {
	var err error

	explicit := cfgFile != "" || os.Getenv("LOGICSCAN_CONFIG") != ""
	if cfgFile == "" {
		cfgFile = config.EnvOr("LOGICSCAN_CONFIG", "config.yml")
	}

	AppConfig = &config.Config{}
	if explicit || config.ValidateConfigPath(cfgFile) == nil {
		AppConfig, err = config.LoadConfig(cfgFile)
		if err != nil {
			fmt.Printf("initializing config file function is crashed - %v \n", err)
			os.Exit(1)
		}
	}
	if err := config.ValidateConfig(AppConfig); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	scan.Init(AppConfig)
	remediate.Init(AppConfig)
	version.Init(AppConfig)
}
