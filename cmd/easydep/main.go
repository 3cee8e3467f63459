package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/easydep-io/easydep/pkg/clock"
	"github.com/easydep-io/easydep/pkg/config"
	"github.com/easydep-io/easydep/pkg/feed"
	"github.com/easydep-io/easydep/pkg/githubrelease"
	"github.com/easydep-io/easydep/pkg/layout"
	"github.com/easydep-io/easydep/pkg/log"
	"github.com/easydep-io/easydep/pkg/metrics"
	"github.com/easydep-io/easydep/pkg/stages"
	"github.com/easydep-io/easydep/pkg/supervisor"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "easydep",
	Short: "easydep - a single-binary release deployment agent",
	Long: `easydep watches a release feed, fetches the released revision,
runs operator-supplied shell scripts to build and activate it, and flips
a "current" symlink other processes on the host follow.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"easydep version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("metrics-addr", ":9090", "Address the /metrics endpoint listens on")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the deployment agent until interrupted",
	RunE:  runAgent,
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := cfg.LogFields(log.Logger)
	logger.Info().Msg("starting easydep")

	lay, err := layout.New(cfg.BaseDirectory, cfg.LinkName)
	if err != nil {
		return fmt.Errorf("building path layout: %w", err)
	}
	if err := lay.CreateIfMissing(); err != nil {
		return fmt.Errorf("preparing deployments root: %w", err)
	}

	adapter := log.NewAdapter(logger)

	tokenFetcher, err := githubrelease.NewAppTokenFetcher(cfg.GithubAppID, installationIDFromEnv(), cfg.GithubAppPrivateKey, clock.Real{})
	if err != nil {
		return fmt.Errorf("preparing GitHub App token fetcher: %w", err)
	}

	source := githubrelease.NewSource(cfg.RepoOrg, cfg.RepoName, tokenFetcher)

	chainDeps := stages.Deps{
		Layout:             lay,
		Fetcher:            tokenFetcher,
		Logger:             adapter,
		BodyPattern:        cfg.BodyParsePattern,
		Labels:             cfg.Labels,
		AdditionalSymlinks: cfg.AdditionalSymlinks,
		MaxStoredReleases:  cfg.DiscarderMax,
	}

	super := supervisor.New(lay, chainDeps, adapter)
	f := feed.New(source, super, cfg.PollInterval, adapter)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	go serveMetrics(metricsAddr, adapter)

	f.Run(ctx)

	logger.Info().Msg("easydep shutting down")
	super.CancelCurrent()
	return nil
}

func serveMetrics(addr string, logger log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics server stopped: " + err.Error())
	}
}

// installationIDFromEnv reads the GitHub App installation id. It is
// separate from pkg/config's required variables because it is only
// needed by the default githubrelease adapter, not by the core.
func installationIDFromEnv() int64 {
	return parseInt64(os.Getenv("EASYDEP_GITHUB_APP_INSTALLATION_ID"))
}

func parseInt64(s string) int64 {
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int64(c-'0')
	}
	return n
}
