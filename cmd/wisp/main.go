// cmd/wisp/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kr/pretty"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"wisp/internal/compiler"
	"wisp/internal/config"
	"wisp/internal/logging"
	"wisp/internal/parser"
	"wisp/internal/repl"
	"wisp/internal/server"
	"wisp/internal/store"
	"wisp/internal/vm"
)

// Build variables - can be set during build with ldflags
var (
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// app carries what every command needs: the configuration, the logger and
// the snapshot store when one is configured.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  *store.Store
}

func main() {
	log.SetFlags(0)
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	args, configPath, stats := globalFlags(argv)
	if len(args) == 0 {
		showUsage()
		return 0
	}

	switch args[0] {
	case "help", "--help", "-h":
		showUsage()
		return 0
	case "version", "--version", "-v":
		showVersion()
		return 0
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	a := &app{cfg: cfg, logger: logger}
	if cfg.Store.Driver != "" {
		a.store, err = store.Open(context.Background(), cfg.Store.Driver, cfg.Store.DSN, logger)
		if err != nil {
			log.Printf("Error: %v", err)
			return 1
		}
		defer a.store.Close()
	}
	if stats {
		defer a.reportStats(time.Now())
	}
	return a.dispatch(args)
}

// globalFlags strips --config <file> and --stats from args.
func globalFlags(args []string) (rest []string, configPath string, stats bool) {
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case args[i] == "--stats":
			stats = true
		default:
			rest = append(rest, args[i])
		}
	}
	return rest, configPath, stats
}

func (a *app) dispatch(args []string) int {
	switch args[0] {
	case "run":
		if len(args) < 2 {
			log.Print("No filename provided to run command")
			return 2
		}
		return a.runFile(args[1])
	case "-e":
		if len(args) < 2 {
			log.Print("-e requires a chunk")
			return 2
		}
		if _, err := a.newVM().DoString(args[1]); err != nil {
			return 1
		}
		return 0
	case "repl":
		return a.runREPL(a.newVM())
	case "serve":
		return a.serve()
	case "check":
		if len(args) < 2 {
			log.Print("No filename provided to check command")
			return 2
		}
		return checkSyntax(args[1])
	case "ast":
		if len(args) < 2 {
			log.Print("No filename provided to ast command")
			return 2
		}
		return printAST(args[1])
	case "disasm":
		if len(args) < 2 {
			log.Print("No filename provided to disasm command")
			return 2
		}
		return disassemble(args[1])
	case "snapshot":
		return a.snapshot(args[1:])
	}

	// a bare file name runs it
	if _, err := os.Stat(args[0]); err == nil {
		return a.runFile(args[0])
	}
	log.Printf("Unknown command: %s", args[0])
	showUsage()
	return 2
}

// newVM builds a VM from the configuration; opts are applied last.
func (a *app) newVM(opts ...vm.Option) *vm.VM {
	machine := vm.New(append([]vm.Option{
		vm.WithLogger(a.logger),
		vm.WithMaxCallDepth(a.cfg.MaxCallDepth),
		vm.WithCompatFallbacks(a.cfg.CompatFallbacks),
		vm.WithDebugBuiltins(a.cfg.DebugBuiltins),
	}, opts...)...)
	if a.store != nil {
		a.store.Register(machine)
	}
	return machine
}

// runFile runs a script; "-" reads it from stdin. The error method has
// already reported a failure, so only the exit status is left to set.
func (a *app) runFile(path string) int {
	if path == "-" {
		path = ""
	}
	if _, err := a.newVM().DoFile(path); err != nil {
		return 1
	}
	return 0
}

func (a *app) runREPL(machine *vm.VM) int {
	var history string
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, ".wisp_history")
	}
	if err := repl.New(machine, repl.Options{HistoryPath: history}).Run(); err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	return 0
}

func (a *app) serve() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(a.cfg.Server, func(session string, opts ...vm.Option) *vm.VM {
		return a.newVM(opts...)
	}, a.logger)
	fmt.Fprintf(os.Stderr, "wisp: serving ws://%s/eval\n", a.cfg.Server.Addr)
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	return 0
}

func parseFile(filename string) ([]parser.Stmt, error) {
	source, err := os.ReadFile(filename)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "could not read file")
	}
	return parser.ParseSource(string(source), filename)
}

func checkSyntax(filename string) int {
	stmts, err := parseFile(filename)
	if err == nil {
		_, err = compiler.Compile(stmts, filename)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	fmt.Printf("%s: syntax is valid\n", filename)
	return 0
}

func printAST(filename string) int {
	stmts, err := parseFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	for _, s := range stmts {
		pretty.Println(s)
	}
	return 0
}

func disassemble(filename string) int {
	stmts, err := parseFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	chunk, err := compiler.Compile(stmts, filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	chunk.Disassemble(os.Stdout)
	return 0
}

func (a *app) reportStats(start time.Time) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fmt.Fprintf(os.Stderr, "wisp: %s elapsed, heap %s in use, %s allocated, %s GC cycles\n",
		time.Since(start).Round(time.Millisecond),
		humanize.Bytes(m.HeapAlloc),
		humanize.Bytes(m.TotalAlloc),
		humanize.Comma(int64(m.NumGC)))
}

func showUsage() {
	fmt.Println("Wisp - an embeddable scripting runtime")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  wisp run <file>                Run a script (- reads stdin)")
	fmt.Println("  wisp -e <chunk>                Run a chunk given on the command line")
	fmt.Println("  wisp repl                      Start interactive REPL")
	fmt.Println("  wisp serve                     Serve sessions over websocket at /eval")
	fmt.Println("  wisp check <file>              Check syntax without running")
	fmt.Println("  wisp ast <file>                Print the syntax tree")
	fmt.Println("  wisp disasm <file>             Print the compiled bytecode")
	fmt.Println()
	fmt.Println("Snapshots (needs store.driver in the config):")
	fmt.Println("  wisp snapshot save <name> <file>   Run a script and save its globals")
	fmt.Println("  wisp snapshot load <name> [file]   Restore globals, then run a script or the REPL")
	fmt.Println("  wisp snapshot list                 List saved snapshots")
	fmt.Println("  wisp snapshot delete <name>        Delete a snapshot")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <file>                YAML configuration")
	fmt.Println("  --stats                        Report time and memory use on exit")
}

func showVersion() {
	fmt.Println(vm.Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	if GitCommit != "unknown" {
		fmt.Printf("Git Commit: %s\n", GitCommit)
	}
	fmt.Printf("Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
