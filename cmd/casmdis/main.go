package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LowLevelTeam/casm/coil"
	"github.com/LowLevelTeam/casm/disassembler"
)

var outputFile string

var rootCmd = &cobra.Command{
	Use:          "casmdis <input.coil>",
	Short:        "The COIL object disassembler",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "",
		"write the disassembly to a file instead of stdout")
}

func run(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading object: %w", err)
	}

	obj, err := coil.Decode(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", args[0], err)
	}

	text, err := disassembler.Disassemble(obj)
	if err != nil {
		return fmt.Errorf("disassembling %s: %w", args[0], err)
	}

	if outputFile == "" {
		fmt.Print(text)
		return nil
	}
	if err := os.WriteFile(outputFile, []byte(text), 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
