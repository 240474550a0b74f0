// Package repl is the interactive read-eval-print loop.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	pkgerrors "github.com/pkg/errors"

	"wisp/internal/parser"
	"wisp/internal/vm"
)

const (
	promptMain = "> "
	promptCont = ">> "
)

type Options struct {
	In          io.Reader
	Out         io.Writer
	HistoryPath string
}

type REPL struct {
	vm   *vm.VM
	opts Options
}

// prompter reads one line of input; io.EOF ends the session.
type prompter interface {
	Prompt(prompt string) (string, error)
}

type plainPrompter struct {
	scanner *bufio.Scanner
}

func (p *plainPrompter) Prompt(string) (string, error) {
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return p.scanner.Text(), nil
}

func New(machine *vm.VM, opts Options) *REPL {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &REPL{vm: machine, opts: opts}
}

// Run reads chunks until end of input or "exit". Errors in chunks are
// reported through the VM's error method and do not end the session.
func (r *REPL) Run() error {
	if f, ok := r.opts.In.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return r.runTerminal()
	}
	return r.loop(&plainPrompter{scanner: bufio.NewScanner(r.opts.In)}, nil)
}

func (r *REPL) runTerminal() error {
	fmt.Fprintf(r.opts.Out, "%s | type 'exit' to quit\n", vm.Version)
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if r.opts.HistoryPath != "" {
		if f, err := os.Open(r.opts.HistoryPath); err == nil {
			ln.ReadHistory(f)
			f.Close()
		}
		defer r.saveHistory(ln)
	}
	return r.loop(ln, ln.AppendHistory)
}

func (r *REPL) saveHistory(ln *liner.State) {
	if f, err := os.Create(r.opts.HistoryPath); err == nil {
		ln.WriteHistory(f)
		f.Close()
	}
}

func (r *REPL) loop(in prompter, remember func(string)) error {
	for {
		chunk, err := readChunk(in)
		if err == io.EOF {
			return nil
		}
		if err == liner.ErrPromptAborted {
			continue
		}
		if err != nil {
			return pkgerrors.Wrap(err, "read input")
		}

		trimmed := strings.TrimSpace(chunk)
		switch {
		case trimmed == "":
			continue
		case trimmed == "exit":
			return nil
		case strings.HasPrefix(trimmed, "="):
			chunk = "return " + trimmed[1:]
		}
		if remember != nil {
			remember(strings.ReplaceAll(chunk, "\n", " "))
		}

		results, err := r.vm.DoString(chunk)
		if err != nil || len(results) == 0 {
			continue
		}
		parts := make([]string, len(results))
		for i, v := range results {
			parts[i] = vm.ToString(v)
		}
		fmt.Fprintln(r.opts.Out, strings.Join(parts, "\t"))
	}
}

// readChunk reads lines until they parse, or fail to parse for a reason
// other than reaching the end of the input.
func readChunk(in prompter) (string, error) {
	var sb strings.Builder
	for {
		prompt := promptMain
		if sb.Len() > 0 {
			prompt = promptCont
		}
		line, err := in.Prompt(prompt)
		if err != nil {
			if err == io.EOF && sb.Len() > 0 {
				return sb.String(), nil
			}
			return "", err
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line)

		src := sb.String()
		if _, err := parser.ParseSource(src, "stdin"); err == nil || !incomplete(err) {
			return src, nil
		}
	}
}

func incomplete(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "near '<eof>'") || strings.Contains(msg, "unfinished long string")
}
