package remediate

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/scan-io-git/logicscan/internal/llm"
	"github.com/scan-io-git/logicscan/internal/report"
	"github.com/scan-io-git/logicscan/pkg/shared/config"
	"github.com/scan-io-git/logicscan/pkg/shared/files"
	"github.com/scan-io-git/logicscan/pkg/shared/logger"
)

// RunOptionsRemediate holds the arguments for the remediate command.
type RunOptionsRemediate struct {
	ReportPath string
	File       string
	Index      int
}

var (
	AppConfig             *config.Config
	remediateOptions      RunOptionsRemediate
	exampleRemediateUsage = `  # Asking for a fix of the first finding reported for a file
  logicscan remediate --report results/logicscan-1b4e.json --file api/views.py

  # Asking for a fix of the third finding of a file
  logicscan remediate --report results/logicscan-1b4e.json --file api/views.py --index 2`
)

// RemediateCmd represents the remediate command.
var RemediateCmd = &cobra.Command{
	Use:                   "remediate --report PATH --file FILE [--index N]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleRemediateUsage,
	Short:                 "Suggests a fix for a finding of a scan report",
	RunE:                  runRemediateCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

func runRemediateCommand(cmd *cobra.Command, args []string) error {
	logger := logger.NewLogger(AppConfig, "core-remediate")
	if err := validateRemediateArgs(&remediateOptions); err != nil {
		logger.Error("invalid remediate arguments", "error", err)
		return err
	}

	provider, err := llm.NewProvider(AppConfig, logger.Named("llm"))
	if err != nil {
		logger.Error("failed to initialize llm provider", "error", err)
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := remediate(ctx, AppConfig, provider, &remediateOptions, cmd.OutOrStdout(), logger); err != nil {
		logger.Error("remediate command failed", "error", err)
		return err
	}
	return nil
}

// remediate loads the finding and prints the suggested fix.
func remediate(ctx context.Context, cfg *config.Config, provider llm.Provider, opts *RunOptionsRemediate, out io.Writer, logger hclog.Logger) error {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if err := files.ValidatePath(opts.ReportPath); err != nil {
		return fmt.Errorf("invalid report path: %w", err)
	}
	r, err := report.Load(opts.ReportPath)
	if err != nil {
		return err
	}
	finding, err := r.Finding(opts.File, opts.Index)
	if err != nil {
		return err
	}
	if finding.Snippet == "" {
		return fmt.Errorf("finding %d of %q carries no code snippet", opts.Index, opts.File)
	}

	model := config.SetThen(cfg.LLM.RemediationModel, cfg.LLM.Model)
	remediator := llm.NewRemediator(provider, model, logger.Named("remediator"))
	fixed, err := remediator.Suggest(ctx, finding.Issue, finding.Snippet)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "# %s (%s)\n%s\n", finding.Issue, finding.Severity, fixed)
	return nil
}

func validateRemediateArgs(opts *RunOptionsRemediate) error {
	if opts.ReportPath == "" {
		return fmt.Errorf("the 'report' flag must be specified")
	}
	if opts.File == "" {
		return fmt.Errorf("the 'file' flag must be specified")
	}
	if opts.Index < 0 {
		return fmt.Errorf("the 'index' flag must not be negative")
	}
	return nil
}

func init() {
	RemediateCmd.Flags().StringVarP(&remediateOptions.ReportPath, "report", "r", "", "Path to a JSON report written by the scan command.")
	RemediateCmd.Flags().StringVarP(&remediateOptions.File, "file", "f", "", "Relative path of the file the finding belongs to.")
	RemediateCmd.Flags().IntVarP(&remediateOptions.Index, "index", "i", 0, "Index of the finding within the file.")
	RemediateCmd.Flags().BoolP("help", "h", false, "Show help for the remediate command.")
}
