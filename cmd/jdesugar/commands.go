package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/daimatz/jdesugar/pkg/bytecode"
	"github.com/daimatz/jdesugar/pkg/config"
)

var (
	renamedColor  = color.New(color.FgYellow)
	emulatedColor = color.New(color.FgGreen)
	plainColor    = color.New(color.FgHiBlack)
	targetColor   = color.New(color.FgCyan, color.Bold)
)

var invokeOpcodes = map[string]byte{
	"invokestatic":    bytecode.OpInvokestatic,
	"invokespecial":   bytecode.OpInvokespecial,
	"invokevirtual":   bytecode.OpInvokevirtual,
	"invokeinterface": bytecode.OpInvokeinterface,
}

func newClassifyCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "classify NAME...",
		Short: "Show how core library types are treated",
		Long: `classify prints, for each internal type name, whether it is renamed into the
private namespace (and to what), whether its default methods are emulated, or
whether it is left alone.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range args {
				switch {
				case s.support.IsRenamed(name):
					fmt.Fprintf(out, "%s\t%s -> %s\n", name, renamedColor.Sprint("renamed"), s.support.Rename(name))
				default:
					emulated, err := s.support.IsEmulatedCoreClassOrInterface(name)
					if err != nil {
						return err
					}
					if emulated {
						fmt.Fprintf(out, "%s\t%s\n", name, emulatedColor.Sprint("emulated"))
					} else {
						fmt.Fprintf(out, "%s\t%s\n", name, plainColor.Sprint("unchanged"))
					}
				}
			}
			return nil
		},
	}
}

func newResolveCmd(flags *globalFlags) *cobra.Command {
	var (
		op  string
		itf bool
	)
	cmd := &cobra.Command{
		Use:   "resolve OWNER NAME DESCRIPTOR",
		Short: "Resolve where a call site is redirected",
		Long: `resolve answers, for one call site, which core interface's companion class the
call must go through. It also reports static member moves for the member.`,
		Example: `  jdesugar resolve --op invokeinterface --itf java/util/List forEach '(Ljava/util/function/Consumer;)V'`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			opcode, ok := invokeOpcodes[strings.ToLower(op)]
			if !ok {
				return fmt.Errorf("unknown --op %q, want one of invokestatic, invokespecial, invokevirtual, invokeinterface", op)
			}
			s, err := openSession(flags)
			if err != nil {
				return err
			}
			owner, name, desc := args[0], args[1], args[2]
			out := cmd.OutOrStdout()

			if target, ok := s.support.MoveTarget(owner, name); ok {
				fmt.Fprintf(out, "moved to %s\n", targetColor.Sprint(target))
			}
			target, err := s.support.CoreInterfaceRewritingTarget(opcode, owner, name, desc, itf)
			if err != nil {
				return err
			}
			if target == nil {
				fmt.Fprintln(out, plainColor.Sprint("no redirect"))
				return nil
			}
			fmt.Fprintf(out, "redirect to %s\n", targetColor.Sprint(target.Name))
			return nil
		},
	}
	cmd.Flags().StringVar(&op, "op", "invokeinterface", "invoke instruction of the call site")
	cmd.Flags().BoolVar(&itf, "itf", false, "the call site's owner is an interface")
	return cmd
}

func newDispatchCmd(flags *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Generate dispatch classes for all emulated interfaces",
		Long: `dispatch scans the target runtime for emulated core interfaces and generates a
dispatch class for each one declaring default methods. Output goes to a jar
(.jar or .zip) or a directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags)
			if err != nil {
				return err
			}
			if output == "" {
				output = s.cfg.Output
			}

			names, err := s.index.Names()
			if err != nil {
				return err
			}
			emulated := s.support.EmulatedInterfaces()
			itfNames := make([]string, len(emulated))
			for i, itf := range emulated {
				itfNames[i] = itf.Name
			}
			log.Info().Int("types", len(names)).Int("workers", s.cfg.Workers).
				Strs("emulated", itfNames).Msg("Scanning target runtime")
			n, err := s.support.RegisterEmulatedDefaults(cmd.Context(), names, s.cfg.Workers)
			if err != nil {
				return err
			}

			store := s.support.Shims().Store()
			switch strings.ToLower(filepath.Ext(output)) {
			case ".jar", ".zip":
				err = store.WriteJar(output)
			default:
				err = store.WriteDir(output)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d dispatch methods in %d classes to %s\n",
				emulatedColor.Sprint("wrote"), n, store.Len(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output jar or directory (default from config)")
	return cmd
}

func newConfigCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			data, err := config.Encode(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
