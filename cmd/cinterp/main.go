package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
	"golang.org/x/term"

	"github.com/xplshn/cinterp/pkg/cli"
	"github.com/xplshn/cinterp/pkg/config"
	"github.com/xplshn/cinterp/pkg/lsp"
	"github.com/xplshn/cinterp/pkg/session"
	"github.com/xplshn/cinterp/pkg/util"
	"github.com/xplshn/cinterp/pkg/view"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

var views = []string{"none", "tokens", "tree", "collapsed"}

func main() {
	app := cli.NewApp("cinterp")
	app.Synopsis = "[options] <file.c>"
	app.Description = "Tokenizes, parses, checks and interprets a subset of C, one phase at a time."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/cinterp>"
	app.Since = 2025

	var (
		phaseName   string
		viewName    string
		format      string
		outFile     string
		projectFile string
		serveLSP    bool
		verbose     bool
		listConfig  bool
	)

	fs := app.FlagSet
	fs.Choice(&phaseName, "phase", "p", "", "Stop after this phase (default: run, or [run] phase from cinterp.toml).", session.PhaseNames()...)
	fs.Choice(&viewName, "view", "", "none", "Print a view of the phase result.", views...)
	fs.Choice(&format, "format", "f", string(view.FormatText), "Encoding of the printed view.", view.Formats...)
	fs.String(&outFile, "output", "o", "", "Write the view or program output to <file>.", "file")
	fs.String(&projectFile, "config", "c", "", "Read settings from <file> instead of the nearest cinterp.toml.", "file")
	fs.Bool(&serveLSP, "lsp", "", false, "Serve the Language Server Protocol on stdio.")
	fs.Bool(&verbose, "verbose", "v", false, "Log phase timings and cache activity to stderr.")
	fs.Bool(&listConfig, "list", "", false, "List features and warnings with their state and exit.")

	cfg := config.NewConfig()
	groups := cfg.SetupFlagGroups(fs)

	app.Action = func(args []string) error {
		verbosity := 0
		if verbose {
			verbosity = 2
		}
		commonlog.Configure(verbosity, nil)

		input := ""
		if len(args) > 0 {
			input = args[0]
		}

		// Project file first, explicit switches override it.
		project, err := loadProject(projectFile, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cinterp: %v\n", err)
			return err
		}
		if project != nil {
			if err := project.Apply(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "cinterp: %v\n", err)
				return err
			}
			if phaseName == "" {
				phaseName = project.Run.Phase
			}
		}
		groups.Apply(cfg)

		if listConfig {
			for _, line := range cfg.Describe() {
				fmt.Println(line)
			}
			return nil
		}
		if serveLSP {
			return lsp.New(cfg, version).Run()
		}

		if input == "" {
			err := fmt.Errorf("no input file specified")
			fmt.Fprintf(os.Stderr, "cinterp: %v\n", err)
			return err
		}
		if phaseName == "" {
			phaseName = session.PhaseRun.String()
		}
		phase, err := session.ParsePhase(phaseName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cinterp: %v\n", err)
			return err
		}

		src, err := os.ReadFile(input)
		if err != nil {
			err = fmt.Errorf("could not read file '%s': %w", input, err)
			fmt.Fprintf(os.Stderr, "cinterp: %v\n", err)
			return err
		}

		out := io.Writer(os.Stdout)
		if outFile != "" {
			f, err := os.Create(outFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "cinterp: %v\n", err)
				return err
			}
			defer f.Close()
			out = f
		}

		return execute(cfg, input, string(src), phase, viewName, view.Format(format), out)
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func loadProject(explicit, input string) (*config.Project, error) {
	if explicit != "" {
		return config.LoadProject(explicit)
	}
	dir := "."
	if input != "" {
		dir = filepath.Dir(input)
	}
	return config.FindProject(dir)
}

// execute runs the pipeline, prints warnings and the first error to stderr, then writes the
// requested view (or the program output when no view was asked for) to out.
func execute(cfg *config.Config, filename, src string, phase session.Phase, viewName string, format view.Format, out io.Writer) error {
	r := session.New(cfg).Run(src, phase)
	color := term.IsTerminal(int(os.Stderr.Fd()))

	for _, w := range r.Warnings {
		util.RenderWarning(os.Stderr, filename, src, w, color)
	}

	var err error
	switch viewName {
	case "tokens":
		rows := view.TokenTable(r.Tokens)
		if r.Err != nil && r.Failed == session.PhaseLex {
			rows = view.ErrorTable(r.Err)
		}
		err = view.WriteTable(out, rows, format)
	case "tree", "collapsed":
		var tree *view.TreeNode
		switch {
		case r.Err != nil && r.Failed <= session.PhaseSyntax:
			tree = view.ErrorTree(r.Err)
		case viewName == "tree":
			tree = view.Tree(r.Root)
		default:
			tree = view.CollapsedTree(r.Root)
		}
		err = view.WriteTree(out, tree, format)
	default:
		_, err = io.WriteString(out, r.Output)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "cinterp: %v\n", err)
		return err
	}

	if r.Err != nil {
		util.Render(os.Stderr, filename, src, r.Err, color)
		return r.Err
	}
	return nil
}
