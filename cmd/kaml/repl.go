package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"kaml/internal/ast"
)

var (
	promptColor = color.New(color.FgGreen)
	contColor   = color.New(color.FgHiBlack)
	bannerColor = color.New(color.FgCyan, color.Bold)
	hintColor   = color.New(color.FgHiBlack)
	errColor    = color.New(color.FgRed)
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive KAML front-end REPL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runRepl()
			return nil
		},
	}
}

// runRepl tokenizes and parses one chunk of input at a time, printing the
// resulting AST; it never evaluates anything (spec.md §1: AST evaluation
// is out of scope). Multi-line input is accumulated while braces are
// unbalanced, same approach as the teacher's REPL.
func runRepl() {
	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".kaml_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            promptColor.Sprint("kaml> "),
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline init failed: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	bannerColor.Fprint(rl.Stdout(), "KAML front-end REPL")
	hintColor.Fprintln(rl.Stdout(), " (type 'exit' or Ctrl+D to quit)")
	fmt.Fprintln(rl.Stdout())

	var accumulated strings.Builder
	braceDepth := 0

	for {
		if braceDepth > 0 {
			rl.SetPrompt(contColor.Sprint("...   "))
		} else {
			rl.SetPrompt(promptColor.Sprint("kaml> "))
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if braceDepth > 0 {
					accumulated.Reset()
					braceDepth = 0
					continue
				}
				hintColor.Fprintln(rl.Stdout(), "(use 'exit' or Ctrl+D to quit)")
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(rl.Stdout())
			}
			break
		}

		if braceDepth == 0 && strings.TrimSpace(line) == "exit" {
			break
		}

		braceDepth += strings.Count(line, "{") - strings.Count(line, "}")
		accumulated.WriteString(line)
		accumulated.WriteString("\n")

		if braceDepth > 0 {
			continue
		}
		braceDepth = 0

		source := accumulated.String()
		accumulated.Reset()

		if strings.TrimSpace(source) == "" {
			continue
		}

		tu, diags := runFrontend(source, "<repl>")
		if len(diags) > 0 {
			for _, d := range diags {
				errColor.Fprintln(rl.Stderr(), d.String())
			}
			continue
		}

		printReplAST(rl.Stdout(), tu)
	}
}

func printReplAST(w io.Writer, tu *ast.TranslationUnit) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ast.NodeToMap(tu)); err != nil {
		errColor.Fprintf(w, "error: %v\n", err)
	}
}
