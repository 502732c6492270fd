package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/daimatz/jdesugar/pkg/classstore"
	"github.com/daimatz/jdesugar/pkg/config"
	"github.com/daimatz/jdesugar/pkg/corelib"
	"github.com/daimatz/jdesugar/pkg/logging"
	"github.com/daimatz/jdesugar/pkg/naming"
	"github.com/daimatz/jdesugar/pkg/typeindex"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	verbosity  int
	configPath string
	classpath  []string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "jdesugar",
		Short: "Core library desugaring decisions for Java bytecode",
		Long: `jdesugar decides how compiled classes that rely on a modern Java standard
library are redirected to a bundled substitute: which core library types are
renamed, which static members move, which interfaces get their default methods
emulated, and where each call site must go. It also generates the dispatch
classes that pick a receiver's own override over the bundled default at runtime.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(flags.verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().CountVarP(&flags.verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (.toml or .yaml)")
	rootCmd.PersistentFlags().StringSliceVar(&flags.classpath, "classpath", nil, "target runtime entries (jmod, jar or directory); overrides the config")

	rootCmd.AddCommand(
		newClassifyCmd(flags),
		newResolveCmd(flags),
		newDispatchCmd(flags),
		newConfigCmd(flags),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "jdesugar version %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

// session is the state one command works on.
type session struct {
	cfg     *config.Config
	index   *typeindex.ClassPath
	support *corelib.Support
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if len(flags.classpath) > 0 {
		cfg.Classpath = flags.classpath
	}
	if len(cfg.Classpath) == 0 {
		if jmod := findJmodPath(); jmod != "" {
			log.Info().Str("jmod", jmod).Msg("Using the installed JDK as target runtime")
			cfg.Classpath = []string{jmod}
		}
	}
	return cfg, nil
}

func openSession(flags *globalFlags) (*session, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	if len(cfg.Classpath) == 0 {
		return nil, fmt.Errorf("no target runtime: set classpath, JAVA_HOME or JAVA_BASE_JMOD")
	}

	rewriter := naming.NewRewriter(cfg.CoreLibrary.Prefix)
	index, err := typeindex.NewClassPath(cfg.Classpath, rewriter)
	if err != nil {
		return nil, err
	}
	support, err := corelib.New(rewriter, index, corelib.NewShimRegistry(classstore.New()), cfg.Options())
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, index: index, support: support}, nil
}

// findJmodPath locates java.base.jmod of an installed JDK.
func findJmodPath() string {
	// 1. Explicit env var
	if env := os.Getenv("JAVA_BASE_JMOD"); env != "" {
		return env
	}
	// 2. JAVA_HOME
	if javaHome := os.Getenv("JAVA_HOME"); javaHome != "" {
		p := filepath.Join(javaHome, "jmods", "java.base.jmod")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	// 3. Glob fallback
	matches, _ := filepath.Glob("/usr/lib/jvm/java-*-openjdk-*/jmods/java.base.jmod")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}
