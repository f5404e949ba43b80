package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"trackgate/internal/issues"
	"trackgate/internal/linear"
	"trackgate/internal/output"
	"trackgate/internal/resolver"
	"trackgate/internal/trace"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui         *output.UI
	traceStore trace.Store

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "trackgate",
	Short: "REST and agent gateway for the Linear issue tracker",
	Long: `trackgate fronts the Linear issue tracker with a REST API, an MCP
server, and an LLM agent. Every entity field accepts human-readable
names, team keys, or emails and is resolved to a canonical ID before
any remote call.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/trackgate/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "trackgate")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TRACKGATE")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "trackgate")

	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "trackgate.db"))
	viper.SetDefault("port", 8080)
	viper.SetDefault("linear.api_key", "")
	viper.SetDefault("linear.endpoint", linear.DefaultEndpoint)
	viper.SetDefault("linear.default_project", "")
	viper.SetDefault("resolver.cache_ttl", "5m")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("server.api_key", "")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
}

// newService builds the Linear client, resolver, and issue operations service
// from the effective configuration.
func newService() (*issues.Service, error) {
	apiKey := viper.GetString("linear.api_key")
	if apiKey == "" {
		return nil, fmt.Errorf("linear.api_key is not set (use TRACKGATE_LINEAR_API_KEY or config.yaml)")
	}

	client := linear.NewClient(apiKey, viper.GetString("linear.endpoint"))

	ttl := resolver.DefaultTTL
	if raw := viper.GetString("resolver.cache_ttl"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse resolver.cache_ttl: %w", err)
		}
		ttl = parsed
	}

	res := resolver.New(client, resolver.WithTTL(ttl))

	var opts []issues.Option
	if ref := viper.GetString("linear.default_project"); ref != "" {
		opts = append(opts, issues.WithDefaultProject(ref))
	}
	return issues.NewService(client, res, opts...), nil
}

// getTraceStore returns the shared trace store, initializing it on first call.
func getTraceStore() (trace.Store, error) {
	if traceStore != nil {
		return traceStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := trace.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	traceStore = s
	return traceStore, nil
}
