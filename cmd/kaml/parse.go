package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"kaml/internal/ast"
	"kaml/internal/diag"
	"kaml/internal/importer"
	"kaml/internal/lexer"
	"kaml/internal/parser"
	"kaml/internal/scope"
	"kaml/internal/shaper"
)

func newParseCmd() *cobra.Command {
	var jsonMode bool

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a KAML source file and print its AST",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readInput(args[0])
			if err != nil {
				return err
			}

			tu, diags := runFrontend(source, args[0])

			if jsonMode {
				if err := printJSON(map[string]interface{}{
					"ast":         ast.NodeToMap(tu),
					"diagnostics": diagsToSlice(diags),
				}); err != nil {
					return err
				}
			} else {
				printDiagsText(diags)
				if len(diags) == 0 {
					if err := printJSON(ast.NodeToMap(tu)); err != nil {
						return err
					}
				}
			}

			if len(diags) > 0 {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonMode, "json", false, "print the AST as JSON")
	return cmd
}

// runFrontend runs the full lex+parse pipeline for source read from
// filename, wiring an FSImporter rooted at filename's directory so `-use`
// statements resolve siblings of the file being parsed. It collects a
// single Diagnostic on parse failure rather than the partial-recovery
// diagnostic list the teacher's parser produced (spec.md §7: the parser
// aborts on the first error).
func runFrontend(source, filename string) (*ast.TranslationUnit, []diag.Diagnostic) {
	root := filepath.Dir(filename)
	imp := importer.NewFSImporter([]string{root}, func(src, name string) (*ast.TranslationUnit, error) {
		tu, diags := runFrontend(src, name)
		if len(diags) > 0 {
			return nil, &parser.Error{Diagnostic: diags[0]}
		}
		return tu, nil
	})

	l := lexer.New(source, filename)
	sh := shaper.New(l)
	p := parser.New(sh, scope.New(), imp, nil, filename)

	tu, err := p.Parse()
	if err != nil {
		perr := err.(*parser.Error)
		return tu, []diag.Diagnostic{perr.Diagnostic}
	}
	return tu, nil
}
