package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/treemirror/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "serve":
		os.Exit(runServe(os.Args[2:]))
	case "watch":
		os.Exit(runWatch(os.Args[2:]))
	case "tree":
		os.Exit(runTree(os.Args[2:]))
	case "browse":
		os.Exit(runBrowse(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: treemirror <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve               Run the reference window server (foreground)")
	fmt.Fprintln(w, "  watch               Mirror the server's tree and log every change")
	fmt.Fprintln(w, "  tree                Print the mirrored tree once and exit")
	fmt.Fprintln(w, "  browse              Open interactive tree browser")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'treemirror <command> --help' for command-specific options.")
}

func isHelp(args []string) bool {
	return len(args) > 0 && (args[0] == "help" || args[0] == "-h" || args[0] == "--help")
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

// newLogger builds the process logger from cfg. Logs always go to stderr so
// stdout stays free for command output and the MCP stdio transport.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

func runConfig(args []string) int {
	if len(args) == 0 || isHelp(args) {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  treemirror config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  treemirror config print [--path PATH] [--effective|--defaults]")
		fmt.Fprintln(os.Stderr, "  treemirror config explain [--path PATH] <yaml.path>")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/treemirror/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		if _, err := loadConfig(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/treemirror/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		printEffective := fs.Bool("effective", false, "Print effective config (default)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			_ = printEffective // default
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			for _, file := range res.Files {
				fmt.Printf("# loaded: %s\n", file)
			}
			cfg = res.Config
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "explain":
		fs := flag.NewFlagSet("explain", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/treemirror/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "explain requires <yaml.path>")
			return 2
		}
		queryPath := fs.Arg(0)

		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		value, src, err := config.Explain(res, queryPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		fmt.Printf("path: %s\n", queryPath)
		fmt.Printf("source: %s\n", formatSource(src))
		fmt.Printf("value:\n%s", string(out))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceDefault:
		return "default"
	default:
		return string(src.Kind)
	}
}
