// Command ployvm compiles and runs a Scheme-subset source file, or drops
// into an interactive REPL when given none. Grounded on
// original_source/src/ploycli/arg_parser.hpp's flag shape, and on the
// teacher's repl.go for the interactive loop (substituting
// github.com/chzyer/readline for its raw bufio.Scanner, and
// github.com/pterm/pterm for its bare fmt.Printf diagnostics).
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pterm/pterm"

	"github.com/kboyd-dev/ployvm/internal/compiler"
	"github.com/kboyd-dev/ployvm/internal/config"
	"github.com/kboyd-dev/ployvm/internal/disasm"
	"github.com/kboyd-dev/ployvm/internal/ployerr"
	"github.com/kboyd-dev/ployvm/internal/value"
	"github.com/kboyd-dev/ployvm/internal/vm"
)

const usage = `usage: ployvm [-h|--help] [-d|--disassemble] [-v|--verbose] [-config <path>] [<file>]

-h|--help           Display this message and quit.
-d|--disassemble    Print disassembly in addition to program output.
-v|--verbose        Trace each instruction the VM executes to stderr.
-config <path>      Load VM resource limits from a TOML file.
<file>              The file path of the scheme program to execute.
                    With no file, starts an interactive REPL.`

// argError combines its message with the usage string, mirroring
// original_source's arg_error.
type argError struct{ msg string }

func (e *argError) Error() string { return fmt.Sprintf("%s\n%s", e.msg, usage) }

type args struct {
	showHelp    bool
	disassemble bool
	verbose     bool
	configPath  string
	filePath    string
}

func parseArgs(argv []string) (*args, error) {
	a := &args{}
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch arg {
		case "-h", "--help":
			a.showHelp = true
			return a, nil
		case "-d", "--disassemble":
			a.disassemble = true
		case "-v", "--verbose":
			a.verbose = true
		case "-config":
			if i+1 >= len(argv) {
				return nil, &argError{msg: "-config requires a path"}
			}
			i++
			a.configPath = argv[i]
		default:
			if a.filePath != "" {
				return nil, &argError{msg: fmt.Sprintf("unexpected arg: %s", arg)}
			}
			a.filePath = arg
		}
	}
	return a, nil
}

func main() {
	initDisplay()

	a, err := parseArgs(os.Args[1:])
	if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
	if a.showHelp {
		fmt.Println(usage)
		return
	}

	limits := config.Default()
	if a.configPath != "" {
		limits, err = config.Load(a.configPath)
		if err != nil {
			reportError(err)
			os.Exit(1)
		}
	}

	if a.filePath == "" {
		repl(limits, a.disassemble, a.verbose)
		return
	}

	src, err := os.ReadFile(a.filePath)
	if err != nil {
		pterm.Error.Printf("reading %s: %v\n", a.filePath, err)
		os.Exit(1)
	}

	if err := runSource(string(src), limits, a.disassemble, a.verbose); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func initDisplay() {
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " ERROR ",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}
	pterm.Info.Prefix = pterm.Prefix{
		Text:  " ployvm ",
		Style: pterm.NewStyle(pterm.BgCyan, pterm.FgBlack),
	}
}

// reportError prints err's message along with its ployerr.Kind, if it has
// one, so a user can tell a typo in their program from a bug in the VM.
func reportError(err error) {
	kind := ployerr.KindOf(err)
	if kind == ployerr.Unknown {
		pterm.Error.Println(err.Error())
		return
	}
	pterm.Error.Printf("%s: %v\n", kind, err)
}

func runSource(src string, limits config.Limits, showDisasm, verbose bool) error {
	buf, err := compiler.CompileWithLimits(src, limits)
	if err != nil {
		return err
	}

	if showDisasm {
		disasm.Print(buf)
	}

	machine := vm.NewWithLimits(buf, limits)
	if verbose {
		machine = machine.WithTrace(os.Stderr)
	}

	result, err := machine.Run()
	if err != nil {
		return err
	}
	fmt.Println(value.Print(result))
	return nil
}

// repl mirrors the teacher's Repl function: print a banner, read lines in a
// loop, report errors without exiting. Unlike the teacher's single shared
// top-level frame, every line here recompiles and reruns the whole session
// buffer, since this VM has no incremental-define entry point of its own.
func repl(limits config.Limits, showDisasm, verbose bool) {
	pterm.Info.Println("ployvm interactive session")

	rl, err := readline.New("ployvm> ")
	if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
	defer rl.Close()

	var session strings.Builder
	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF on ^D, io.ErrUnexpectedEOF on ^C
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		session.WriteString(line)
		session.WriteString("\n")

		if err := runSource(session.String(), limits, showDisasm, verbose); err != nil {
			reportError(err)
			// Drop the line that failed to compile so a typo doesn't
			// permanently poison the rest of the session.
			trimmed := strings.TrimSuffix(session.String(), line+"\n")
			session.Reset()
			session.WriteString(trimmed)
		}
	}
	fmt.Println("goodbye")
}
