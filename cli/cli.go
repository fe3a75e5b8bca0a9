// Package cli provides the command-line interface for storyvars. It reads
// narrative text on stdin, runs the directive interpreter and macro engine
// for one scope, and writes the cleaned text to stdout with change-log lines
// on stderr.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/narratek/storyvars/internal/command"
	"github.com/narratek/storyvars/internal/config"
	"github.com/narratek/storyvars/internal/scope"
	"github.com/narratek/storyvars/internal/storage"
)

// Run executes the CLI with the given arguments.
// Returns exit code (0 = success, non-zero = error).
func Run(args []string) int {
	switch {
	case len(args) > 0 && (args[0] == "help" || args[0] == "-h" || args[0] == "--help"):
		printHelp()
		return 0
	}

	cfg, fs, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storyvars: %v\n", err)
		return 1
	}

	backend, err := storage.Open(storage.Config{
		Type: cfg.Storage.Type,
		Path: cfg.Storage.Path,
		URL:  cfg.Storage.URL,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "storyvars: open storage: %v\n", err)
		return 1
	}
	defer backend.Close()

	opts := []scope.Option{
		scope.WithTagNames(tagNames(cfg.Engine.Tags)),
		scope.WithScriptID(cfg.Engine.ScriptID),
		scope.WithVerbosity(cfg.Verbosity()),
	}
	if cfg.Engine.MaxPasses > 0 {
		opts = append(opts, scope.WithMacroPasses(cfg.Engine.MaxPasses))
	}
	registry := scope.NewRegistry(backend, opts...)
	defer registry.Close()

	switch {
	case len(fs.Args()) > 0 && fs.Args()[0] == "export":
		return runExport(registry, backend)
	case len(fs.Args()) > 0 && fs.Args()[0] == "import":
		return runImport(registry)
	default:
		return runFilter(registry, cfg)
	}
}

// runFilter is the default mode: interpret directives and resolve macros in
// stdin text for the selected scope.
func runFilter(registry *scope.Registry, cfg *config.Config) int {
	sc := scope.Global()
	if cfg.Scope != "" && cfg.Scope != "global" {
		sc = scope.Character(cfg.Scope)
	}

	mgr, err := registry.Get(sc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storyvars: %v\n", err)
		return 1
	}

	text, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storyvars: read stdin: %v\n", err)
		return 1
	}

	res, err := mgr.ParseAllCommands(string(text))
	if err != nil {
		fmt.Fprintf(os.Stderr, "storyvars: %v\n", err)
		return 1
	}

	for _, entry := range res.Logs {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", entry.Level, entry.Message)
	}

	fmt.Fprint(os.Stdout, mgr.ReplaceMacros(res.CleanText))
	return 0
}

// runExport hydrates every persisted scope and writes a snapshot to stdout.
func runExport(registry *scope.Registry, backend storage.Backend) int {
	keys, err := backend.Keys()
	if err != nil {
		fmt.Fprintf(os.Stderr, "storyvars: list scopes: %v\n", err)
		return 1
	}
	for _, key := range keys {
		sc, err := scope.ScopeFromKey(key)
		if err != nil {
			continue
		}
		if _, err := registry.Get(sc); err != nil {
			fmt.Fprintf(os.Stderr, "storyvars: %v\n", err)
			return 1
		}
	}

	snap := registry.ExportSnapshot()
	data, err := snap.Encode()
	if err != nil {
		fmt.Fprintf(os.Stderr, "storyvars: %v\n", err)
		return 1
	}
	os.Stdout.Write(data)
	fmt.Println()
	return 0
}

// runImport reads a snapshot from stdin and replaces every scope's state.
func runImport(registry *scope.Registry) int {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storyvars: read stdin: %v\n", err)
		return 1
	}
	snap, err := scope.DecodeSnapshot(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storyvars: %v\n", err)
		return 1
	}
	if err := registry.ImportSnapshot(snap); err != nil {
		fmt.Fprintf(os.Stderr, "storyvars: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "imported snapshot %s (%d character scopes)\n", snap.ID, len(snap.Characters))
	return 0
}

// tagNames builds the directive vocabulary, applying any remapping from
// configuration.
func tagNames(overrides map[string]string) command.TagNames {
	names := command.DefaultTagNames()
	for kind, token := range overrides {
		switch kind {
		case "setVar":
			names.SetVar = token
		case "registerVar":
			names.RegisterVar = token
		case "registerVars":
			names.RegisterVars = token
		case "unregisterVar":
			names.UnregisterVar = token
		case "unregisterVars":
			names.UnregisterVars = token
		case "registerTable":
			names.RegisterTable = token
		case "unregisterTable":
			names.UnregisterTable = token
		case "registerHiddenVar":
			names.RegisterHiddenVar = token
		case "unregisterHiddenVar":
			names.UnregisterHidden = token
		case "setTable":
			names.SetTable = token
		case "addTableRow":
			names.AddTableRow = token
		case "removeTableRow":
			names.RemoveTableRow = token
		case "setHiddenVar":
			names.SetHiddenVar = token
		}
	}
	return names
}

func printHelp() {
	fmt.Print(`storyvars - narrative state-scripting engine

Usage:
  storyvars [flags]              interpret directives in stdin text
  storyvars [flags] export       write a snapshot of all scopes to stdout
  storyvars [flags] import       replace all scopes from a stdin snapshot

Flags:
  -config PATH          TOML config file (default storyvars.toml)
  -storage TYPE         memory, sqlite, postgres, bolt
  -storage-path PATH    SQLite/Bolt database path
  -storage-url URL      PostgreSQL connection URL
  -scope ID             target scope: "global" or a character id
  -script-id ID         script id for global-scope dynamic macros
  -v, -vv, -vvv         verbosity
`)
}
