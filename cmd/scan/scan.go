package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/scan-io-git/logicscan/cmd/version"
	"github.com/scan-io-git/logicscan/internal/llm"
	"github.com/scan-io-git/logicscan/internal/metrics"
	pipeline "github.com/scan-io-git/logicscan/internal/scan"
	"github.com/scan-io-git/logicscan/internal/sarif"
	"github.com/scan-io-git/logicscan/internal/store"
	"github.com/scan-io-git/logicscan/pkg/shared/config"
	"github.com/scan-io-git/logicscan/pkg/shared/files"
	"github.com/scan-io-git/logicscan/pkg/shared/logger"
)

// RunOptionsScan holds the arguments for the scan command.
type RunOptionsScan struct {
	Repository   string
	Organization string
	Branch       string
	MaxFiles     int
	OutputPath   string
	SarifPath    string
	MetricsFile  string
}

// Global variables for configuration and command arguments
var (
	AppConfig        *config.Config
	scanOptions      RunOptionsScan
	exampleScanUsage = `  # Scanning a GitHub repository by its short name
  logicscan scan acme/shop

  # Scanning a branch of a repository with a clone URL and a larger file budget
  logicscan scan https://github.com/acme/shop.git --branch develop --max-files 50

  # Scanning a local folder and exporting SARIF next to the JSON report
  logicscan scan ./shop --output /tmp/results --sarif /tmp/results/shop.sarif

  # Scanning on behalf of an organization and dumping Prometheus metrics
  logicscan scan acme/shop --org acme --metrics-file /var/lib/node_exporter/logicscan.prom`
)

// ScanCmd represents the scan command.
var ScanCmd = &cobra.Command{
	Use:                   "scan REPOSITORY [--org ORG] [--branch BRANCH] [--max-files N] [--output PATH] [--sarif PATH] [--metrics-file PATH]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleScanUsage,
	Short:                 "Scans a repository for business logic flaws",
	Args:                  cobra.MaximumNArgs(1),
	RunE:                  runScanCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// runScanCommand executes the scan command.
func runScanCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}

	logger := logger.NewLogger(AppConfig, "core-scan")
	scanOptions.Repository = args[0]
	if err := validateScanArgs(&scanOptions); err != nil {
		logger.Error("invalid scan arguments", "error", err)
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	m := metrics.New(nil)
	scan, err := runScan(ctx, AppConfig, &scanOptions, m, logger)
	if scan == nil {
		return err
	}

	if scanOptions.MetricsFile != "" {
		if mErr := m.WriteToTextfile(scanOptions.MetricsFile); mErr != nil {
			logger.Warn("failed to write metrics", "error", mErr)
		}
	}
	if err != nil {
		logger.Error("scan command failed", "scanID", scan.ID, "error", err)
		return err
	}

	if err := writeOutputs(AppConfig, &scanOptions, scan, logger); err != nil {
		logger.Error("failed to write results", "error", err)
		return err
	}

	s := scan.Results.Summary
	fmt.Fprintf(cmd.OutOrStdout(), "scan %s completed: %d/%d files analyzed, %d findings, %d failed chunks, consistent=%t\n",
		scan.ID, s.Analyzed, s.Scanned, s.Findings, s.FailedChunks, scan.Results.Symbolic.Consistent)
	return nil
}

// runScan creates the scan record and runs it to a terminal status.
func runScan(ctx context.Context, cfg *config.Config, opts *RunOptionsScan, m *metrics.Metrics, logger hclog.Logger) (*store.Scan, error) {
	st, err := store.New(cfg, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	if opts.Organization != "" {
		if err := ensureOrganization(ctx, st, opts.Organization); err != nil {
			return nil, err
		}
	}

	scan := &store.Scan{
		OrganizationID: opts.Organization,
		Repository:     opts.Repository,
		Branch:         opts.Branch,
	}
	if err := st.CreateScan(ctx, scan); err != nil {
		return nil, fmt.Errorf("failed to create scan: %w", err)
	}
	logger.Info("scan created", "scanID", scan.ID, "repository", scan.Repository)

	provider, err := llm.NewProvider(cfg, logger.Named("llm"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm provider: %w", err)
	}
	dispatcher := llm.NewDispatcher(provider, llm.OptionsFromConfig(cfg), m, logger.Named("dispatcher"))

	pipelineOpts := pipeline.OptionsFromConfig(cfg)
	if opts.MaxFiles > 0 {
		pipelineOpts.MaxFiles = opts.MaxFiles
	}

	orchestrator := pipeline.New(
		st,
		pipeline.NewGitSource(cfg, logger.Named("source")),
		pipeline.NewStaticCredentials(cfg),
		dispatcher,
		m,
		pipelineOpts,
		logger.Named("orchestrator"),
	)
	runner := pipeline.NewRunner(orchestrator, cfg.Scan.Retry, logger.Named("runner"))
	return runner.RunWithRetry(ctx, scan.ID)
}

func ensureOrganization(ctx context.Context, st store.Store, id string) error {
	_, err := st.LoadOrganization(ctx, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to load organization %q: %w", id, err)
	}
	if err := st.SaveOrganization(ctx, &store.Organization{ID: id, Name: id}); err != nil {
		return fmt.Errorf("failed to save organization %q: %w", id, err)
	}
	return nil
}

// writeOutputs stores the JSON report and the optional SARIF export.
func writeOutputs(cfg *config.Config, opts *RunOptionsScan, scan *store.Scan, logger hclog.Logger) error {
	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = config.GetLogicscanResultsHome(cfg)
	}
	reportPath, folder, err := files.DetermineFileFullPath(outputPath, fmt.Sprintf("logicscan-%s.json", scan.ID))
	if err != nil {
		return err
	}
	if err := files.CreateFolderIfNotExists(folder); err != nil {
		return err
	}
	if err := scan.Results.Write(reportPath); err != nil {
		return err
	}
	logger.Info("report written", "path", reportPath)

	if opts.SarifPath == "" {
		return nil
	}
	sourceFolder := ""
	if info, err := os.Stat(opts.Repository); err == nil && info.IsDir() {
		sourceFolder = opts.Repository
	}
	sarifReport, err := sarif.Export(scan.Results, version.CoreVersion, sourceFolder, logger.Named("sarif"))
	if err != nil {
		return err
	}
	sarifPath, sarifFolder, err := files.DetermineFileFullPath(opts.SarifPath, fmt.Sprintf("logicscan-%s.sarif", scan.ID))
	if err != nil {
		return err
	}
	if err := files.CreateFolderIfNotExists(sarifFolder); err != nil {
		return err
	}
	if err := sarifReport.WriteFile(sarifPath); err != nil {
		return err
	}
	levels := sarifReport.CollectSeverityInfo()
	logger.Info("sarif report written", "path", filepath.Clean(sarifPath),
		"errors", levels["error"], "warnings", levels["warning"], "notes", levels["note"], "total", levels["total"])
	return nil
}

// Initialize flags for the scan command.
func init() {
	ScanCmd.Flags().StringVar(&scanOptions.Organization, "org", "", "Organization the scan runs on behalf of.")
	ScanCmd.Flags().StringVarP(&scanOptions.Branch, "branch", "b", "", "Branch to scan. Defaults to the repository default branch.")
	ScanCmd.Flags().IntVar(&scanOptions.MaxFiles, "max-files", 0, "Budget of unchanged files to analyze (default from config, 25).")
	ScanCmd.Flags().StringVarP(&scanOptions.OutputPath, "output", "o", "", "Path to the output file or directory for the JSON report.")
	ScanCmd.Flags().StringVar(&scanOptions.SarifPath, "sarif", "", "Path to the output file or directory for a SARIF export.")
	ScanCmd.Flags().StringVar(&scanOptions.MetricsFile, "metrics-file", "", "Path to a textfile collector file for Prometheus metrics.")
	ScanCmd.Flags().BoolP("help", "h", false, "Show help for the scan command.")
}
