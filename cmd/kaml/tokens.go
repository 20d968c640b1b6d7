package main

import (
	"os"

	"github.com/spf13/cobra"

	"kaml/internal/lexer"
)

func newTokensCmd() *cobra.Command {
	var jsonMode bool

	cmd := &cobra.Command{
		Use:   "tokens <file>",
		Short: "Tokenize a KAML source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readInput(args[0])
			if err != nil {
				return err
			}

			l := lexer.New(source, args[0])
			toks, diags := l.Tokenize()

			if jsonMode {
				if err := printJSON(map[string]interface{}{
					"tokens":      tokensToJSON(toks),
					"diagnostics": diagsToSlice(diags),
				}); err != nil {
					return err
				}
			} else {
				printTokensText(toks)
				printDiagsText(diags)
			}

			if len(diags) > 0 {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonMode, "json", false, "print tokens as JSON")
	return cmd
}
