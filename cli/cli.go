package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sparkgen/spark/pkg/config"
	"github.com/sparkgen/spark/pkg/core"
	"github.com/sparkgen/spark/pkg/fs"
	"github.com/sparkgen/spark/pkg/logger"
	"github.com/sparkgen/spark/pkg/registry"
	"github.com/sparkgen/spark/pkg/steps"
)

var rootCmd = &cobra.Command{
	Use:   "spark",
	Short: "Spark is a CLI tool for scaffolding frontend projects",
	Long:  `Spark scaffolds frontend projects from your selections, resolving real package versions from the registry and degrading gracefully offline.`,
}

var newCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Generate a new project",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		flags, err := parseNewFlags(cmd, args)
		if err != nil {
			fmt.Printf("Error parsing flags: %v\n", err)
			os.Exit(1)
		}
		if err := runNew(cmd.Context(), flags); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

type newFlags struct {
	name       string
	dir        string
	configPath string
	language   string
	styling    string
	state      string
	routing    string
	features   []string
	sequential bool
	offline    bool
}

func init() {
	rootCmd.AddCommand(newCmd)

	newCmd.Flags().StringP("dir", "d", "", "Target directory (defaults to the project name)")
	newCmd.Flags().StringP("config", "c", "", "Path to custom configuration file")
	newCmd.Flags().String("language", "typescript", "Language: typescript or javascript")
	newCmd.Flags().String("styling", "tailwind", "Styling: tailwind or css")
	newCmd.Flags().String("state", "zustand", "State library: zustand, redux, or none")
	newCmd.Flags().String("routing", "react-router", "Routing: react-router or none")
	newCmd.Flags().StringSlice("features", []string{"linting", "prettier", "readme", "git"}, "Optional features")
	newCmd.Flags().Bool("sequential", false, "Run steps one at a time with progress output")
	newCmd.Flags().Bool("offline", false, "Skip registry lookups and use pinned versions")
}

func parseNewFlags(cmd *cobra.Command, args []string) (newFlags, error) {
	var f newFlags
	if len(args) > 0 {
		f.name = args[0]
	} else {
		f.name = "my-app"
	}

	var err error
	if f.dir, err = cmd.Flags().GetString("dir"); err != nil {
		return f, err
	}
	if f.dir == "" {
		f.dir = f.name
	}
	if f.configPath, err = cmd.Flags().GetString("config"); err != nil {
		return f, err
	}
	if f.language, err = cmd.Flags().GetString("language"); err != nil {
		return f, err
	}
	if f.styling, err = cmd.Flags().GetString("styling"); err != nil {
		return f, err
	}
	if f.state, err = cmd.Flags().GetString("state"); err != nil {
		return f, err
	}
	if f.routing, err = cmd.Flags().GetString("routing"); err != nil {
		return f, err
	}
	if f.features, err = cmd.Flags().GetStringSlice("features"); err != nil {
		return f, err
	}
	if f.sequential, err = cmd.Flags().GetBool("sequential"); err != nil {
		return f, err
	}
	if f.offline, err = cmd.Flags().GetBool("offline"); err != nil {
		return f, err
	}
	return f, nil
}

// retryPolicyFromConfig applies the configured retry count on top of the
// default backoff schedule.
func retryPolicyFromConfig(cfg *config.Config) registry.RetryPolicy {
	p := registry.DefaultRetryPolicy()
	p.MaxRetries = cfg.MaxRetries
	return p
}

func runNew(ctx context.Context, flags newFlags) error {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}
	if flags.offline {
		cfg.Offline = true
	}

	log, err := logger.NewFileLogger(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	osFs := afero.NewOsFs()
	diskCache := registry.NewDiskCache(osFs, cfg.CacheDir, cfg.DiskCacheTTL)
	retry := retryPolicyFromConfig(cfg)
	resolver := registry.NewResolver(registry.Options{
		RegistryURL:     cfg.RegistryURL,
		Offline:         cfg.Offline,
		RequestTimeout:  cfg.RequestTimeout,
		OfflineCooldown: cfg.OfflineCooldown,
		MemoryCacheTTL:  cfg.MemoryCacheTTL,
		Retry:           &retry,
		DiskCache:       diskCache,
		Logger:          log,
	})
	resolver.Prefetch(ctx, registry.PrefetchPackages)
	defer func() {
		if err := resolver.Flush(); err != nil {
			log.Warn().Err(err).Msg("Failed to flush version cache")
		}
	}()

	reg := core.NewRegistry()
	if err := steps.RegisterDefaults(reg); err != nil {
		return err
	}

	pub := NewConsoleStepPublisher(logger.NewZerologAdapter(*log))
	engine := core.NewProjectEngine(reg, resolver, fs.NewOsFileSystem(), pub, log)

	strategy := core.PhasedParallel
	if flags.sequential {
		strategy = core.SequentialWithProgress
	}
	req := &core.Request{
		ProjectName: flags.name,
		TargetDir:   flags.dir,
		Options: map[string]string{
			steps.OptionLanguage: flags.language,
			steps.OptionStyling:  flags.styling,
			steps.OptionState:    flags.state,
			steps.OptionRouting:  flags.routing,
		},
		Features:       flags.features,
		Strategy:       strategy,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	if err := engine.Generate(ctx, req); err != nil {
		return err
	}
	fmt.Printf("\nProject %s created in %s\n", flags.name, flags.dir)
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
