package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LowLevelTeam/casm/assembler"
	"github.com/LowLevelTeam/casm/source"
)

var (
	outputFile      string
	allowUnresolved bool
)

var rootCmd = &cobra.Command{
	Use:   "casm <input.casm>",
	Short: "The CASM assembler for the COIL object format",
	Long: `casm translates CASM assembly source into a COIL object file.

All problems found in one run are reported; an object is written only when
no error-severity diagnostics were produced.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "",
		"output object file (default: input name with a .coil extension)")
	rootCmd.Flags().BoolVar(&allowUnresolved, "allow-unresolved", false,
		"keep undefined global symbols instead of diagnosing them")
}

func run(cmd *cobra.Command, args []string) error {
	input := args[0]
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	asm := assembler.NewWithOptions(assembler.Options{AllowUnresolved: allowUnresolved})
	obj, diags := asm.Assemble(string(data), input)
	for _, d := range diags {
		fmt.Fprintln(os.Stderr, d)
	}
	if source.HasErrors(diags) {
		return fmt.Errorf("assembly of %s failed", input)
	}

	out := outputFile
	if out == "" {
		out = strings.TrimSuffix(input, ".casm") + ".coil"
	}
	if err := os.WriteFile(out, obj.Encode(), 0644); err != nil {
		return fmt.Errorf("writing object: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
