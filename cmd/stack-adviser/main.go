// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the stack-adviser CLI.
// Implements: prd008-cli; command surface for prd001-resolution,
//             prd005-knowledge-base, prd006-provenance and
//             prd007-dependency-monkey.
// See docs/ARCHITECTURE § Command Surface, § Project Structure.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/stack-adviser/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the stack-adviser CLI.
var rootCmd = &cobra.Command{
	Use:   "stack-adviser",
	Short: "Dependency stack resolution with adaptive simulated annealing",
	Long: `stack-adviser resolves application dependency stacks against a local
knowledge base of solved package releases. A beam search driven by an
adaptive simulated annealing predictor scores candidate stacks through
a pipeline of boot, pseudonym, sieve, step, stride and wrap units.

Each operation is a subcommand: advise recommends stacks,
dependency-monkey samples valid stacks for offline inspection,
provenance validates existing lockfiles, and knowledge manages the
solver database the other commands read from.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./stack-adviser.yaml or ~/.config/stack-adviser/config.yaml)")
	rootCmd.PersistentFlags().String("db", "stack-adviser.db", "knowledge base SQLite file")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("stack-adviser")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "stack-adviser"))
		}
	}

	viper.SetEnvPrefix("STACK_ADVISER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// --- settings ---

// Settings resolve in flag, config file, flag default order: an
// explicitly passed flag always wins, otherwise a config or environment
// value, otherwise the flag's default.

func settingString(cmd *cobra.Command, flag, key string) string {
	if !cmd.Flags().Changed(flag) && viper.IsSet(key) {
		return viper.GetString(key)
	}
	v, _ := cmd.Flags().GetString(flag)
	return v
}

func settingInt(cmd *cobra.Command, flag, key string) int {
	if !cmd.Flags().Changed(flag) && viper.IsSet(key) {
		return viper.GetInt(key)
	}
	v, _ := cmd.Flags().GetInt(flag)
	return v
}

func settingInt64(cmd *cobra.Command, flag, key string) int64 {
	if !cmd.Flags().Changed(flag) && viper.IsSet(key) {
		return viper.GetInt64(key)
	}
	v, _ := cmd.Flags().GetInt64(flag)
	return v
}

func settingBool(cmd *cobra.Command, flag, key string) bool {
	if !cmd.Flags().Changed(flag) && viper.IsSet(key) {
		return viper.GetBool(key)
	}
	v, _ := cmd.Flags().GetBool(flag)
	return v
}

// --- result output ---

// resultEnvelope is the document every analysis command emits: the
// report payload wrapped with the input and parameters that produced
// it, so a stored result stays self-describing.
type resultEnvelope struct {
	Error      bool `json:"error" yaml:"error"`
	Report     any  `json:"report" yaml:"report"`
	Parameters any  `json:"parameters" yaml:"parameters"`
	Input      any  `json:"input,omitempty" yaml:"input,omitempty"`
}

// errorReport is the report payload used when a command fails before
// producing a real report.
func errorReport(err error) []types.Justification {
	return []types.Justification{{Type: types.JustificationError, Message: err.Error()}}
}

// writeResult renders env to path; "-" or an empty path means stdout.
// File output is always indented. Stdout output is indented only on a
// terminal, so piped results stay one object per line; --no-pretty
// forces the compact form.
func writeResult(path, format string, noPretty bool, env *resultEnvelope) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case "yaml":
		data, err = yaml.Marshal(env)
	case "", "json":
		if (path == "" || path == "-") && (noPretty || !stdoutIsTerminal()) {
			data, err = json.Marshal(env)
		} else {
			data, err = json.MarshalIndent(env, "", "  ")
		}
	default:
		return fmt.Errorf("unsupported output format %q: use json or yaml", format)
	}
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	if !bytes.HasSuffix(data, []byte("\n")) {
		data = append(data, '\n')
	}

	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing result to %s: %w", path, err)
	}
	fmt.Fprintln(os.Stderr, "Result written to", path)
	return nil
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func main() {
	// An interrupt cancels the run context; commands finish with the
	// work completed so far.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
