// Command kaml is the CLI entry point for the KAML front-end.
//
// Usage:
//
//	kaml tokens <file> [--json]   Tokenize and print tokens
//	kaml parse  <file> [--json]   Parse and print the AST
//	kaml repl                     Start an interactive front-end REPL
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kaml",
		Short: "KAML front-end toolchain",
		Long: `kaml tokenizes and parses KAML source, the front-end for a small
templating/scripting language. It does not evaluate programs: every
subcommand stops at the AST.`,
	}

	rootCmd.AddCommand(newTokensCmd())
	rootCmd.AddCommand(newParseCmd())
	rootCmd.AddCommand(newReplCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// readInput reads source from a file path, or from stdin when the path is
// "-".
func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}
