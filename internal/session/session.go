// Package session drives one Tcl-based child tool through its whole
// lifecycle: resolving argv via an adapter, spawning the child with the
// three NOTCL_PIPE_* FIFOs and NOTCL_DEBUG_TCL wired into its environment,
// completing the TclHello handshake, evaluating commands one at a time
// through the bridge transport, and reaping the child on scope exit with
// the exit-code policy from the wire contract.
package session

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/creack/pty"
	"github.com/tcldrv/tcldrv/internal/adapter"
	"github.com/tcldrv/tcldrv/internal/bridge"
	"github.com/tcldrv/tcldrv/internal/config"
	"github.com/tcldrv/tcldrv/internal/evallog"
	"github.com/tcldrv/tcldrv/internal/handle"
	"github.com/tcldrv/tcldrv/internal/protocol"
	"github.com/tcldrv/tcldrv/internal/redact"
	"github.com/tcldrv/tcldrv/internal/tclvalue"
)

// Options configures a Session. Zero value has CalledObjectPos ==
// handle.PositionSecond applied by Open if left empty.
type Options struct {
	// ScriptPath is the companion Tcl script's path. Building the child's
	// argv from it is the only use of this value; the caller owns its
	// lifetime (the companion script and tool-specific adapters are
	// external collaborators, not something this package generates).
	ScriptPath string

	Cwd             string
	Interact        bool
	LogCommands     bool
	LogRetvals      bool
	LogFancy        bool
	DebugTcl        bool
	DebugPy         bool
	AbortOnError    bool
	CalledObjectPos handle.ObjectPosition
	Env             map[string]string
	AddPath         []string
	EvalHistorySize int

	// PTY starts the child under a pseudo-terminal instead of inheriting the
	// driver's own stdio. Only meaningful when Interact is true; a tool
	// handed no PTY often disables its own line editing and colour once it
	// notices stdin isn't a tty. The FIFO/sentinel transport doesn't care
	// either way.
	PTY bool

	// Stdout is where log lines are written; defaults to os.Stdout.
	Stdout io.Writer
}

// TclError reports a non-zero err_code returned by the child for one
// evaluation. The session that produced it remains usable.
type TclError struct {
	Text string
}

func (e *TclError) Error() string { return e.Text }

// ChildProcessFailedError is raised at scope close when the child's exit
// code is non-zero, or when early death was observed during the body.
type ChildProcessFailedError struct {
	ExitCode int
	Argv     []string
}

func (e *ChildProcessFailedError) Error() string {
	return fmt.Sprintf("session: child process %v failed with exit code %d", e.Argv, e.ExitCode)
}

// Session owns one transport, one child process, and the eval history for
// one Tcl tool invocation.
type Session struct {
	transport *bridge.Transport
	cmd       *exec.Cmd
	argv      []string
	opts      Options
	stdout    io.Writer
	ptmx      *os.File

	Hello   *protocol.TclHello
	History *evallog.Ring
}

// RecentEvals returns the retained eval history in chronological order, for
// post-mortem inspection after a ChildProcessFailedError. Empty if
// Options.EvalHistorySize disabled it.
func (s *Session) RecentEvals() []evallog.Entry {
	return s.History.Entries()
}

// Open spawns the child per ad's argv, completes the TclHello handshake,
// and returns a Session ready for Eval/ProcCall. Callers must call Close
// exactly once, passing the error (if any) their body produced.
func Open(ad adapter.Adapter, opts Options) (*Session, error) {
	if opts.CalledObjectPos == "" {
		opts.CalledObjectPos = handle.PositionSecond
	}
	if opts.Cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			opts.Cwd = wd
		}
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	transport, err := bridge.Open()
	if err != nil {
		return nil, fmt.Errorf("session: open transport: %w", err)
	}

	log.Printf("session: opened transport, resolving child argv")

	argv, err := ad.Cmdline(opts.ScriptPath)
	if err != nil {
		transport.Close()
		return nil, fmt.Errorf("session: resolve argv: %w", err)
	}
	if len(argv) == 0 {
		transport.Close()
		return nil, fmt.Errorf("session: adapter returned empty argv")
	}

	tcl2py, py2tcl, sentinel := transport.Paths()
	debugTcl := "0"
	if opts.DebugTcl {
		debugTcl = "1"
	}
	env := config.BuildEnviron(config.SessionConfig{Env: opts.Env, AddPath: opts.AddPath}, map[string]string{
		"NOTCL_PIPE_TCL2PY":   tcl2py,
		"NOTCL_PIPE_PY2TCL":   py2tcl,
		"NOTCL_PIPE_SENTINEL": sentinel,
		"NOTCL_DEBUG_TCL":     debugTcl,
	})

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = opts.Cwd
	cmd.Env = env

	s := &Session{
		transport: transport,
		cmd:       cmd,
		argv:      argv,
		opts:      opts,
		stdout:    stdout,
		History:   evallog.New(opts.EvalHistorySize),
	}

	log.Printf("session: starting child: %s", cmd.String())

	if opts.Interact && opts.PTY {
		ptmx, err := pty.Start(cmd)
		if err != nil {
			transport.Close()
			return nil, fmt.Errorf("session: start child under pty: %w", err)
		}
		s.ptmx = ptmx
		go io.Copy(ptmx, os.Stdin)
		go io.Copy(os.Stdout, ptmx)
	} else {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			transport.Close()
			return nil, fmt.Errorf("session: start child: %w", err)
		}
	}

	if err := transport.OpenSentinel(); err != nil {
		s.killAndWait()
		transport.Close()
		return nil, fmt.Errorf("session: open sentinel: %w", err)
	}

	raw, err := transport.Recv()
	if err != nil {
		s.killAndWait()
		transport.Close()
		return nil, fmt.Errorf("session: await TclHello: %w", err)
	}
	hello, err := protocol.TclHelloFromRaw(raw)
	if err != nil {
		s.killAndWait()
		transport.Close()
		return nil, fmt.Errorf("session: decode TclHello: %w", err)
	}
	s.Hello = hello
	s.debugLog(fmt.Sprintf("Received TclHello: %+v", hello))

	return s, nil
}

func (s *Session) killAndWait() {
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
	}
	if s.ptmx != nil {
		s.ptmx.Close()
	}
}

// Close sends PyExit (unless bodyErr already signals child death), waits
// for the child, unlinks the transport, and applies the exit-code policy.
// If bodyErr and the teardown each produced an error, bodyErr is returned
// as the primary cause with the teardown error attached as context.
func (s *Session) Close(bodyErr error) error {
	defer s.transport.Close()

	quit := "1"
	if s.opts.Interact {
		quit = "0"
	}
	if s.opts.AbortOnError && bodyErr != nil {
		quit = "1"
	}

	heldErr := bodyErr
	if s.opts.Interact && !s.opts.AbortOnError && bodyErr != nil && !errors.Is(bodyErr, bridge.ErrChildProcessEarlyExit) {
		s.logLine("info", fmt.Sprintf(
			"Following exception is held back and will be raised once the Tcl child process exits:\n%v", bodyErr))
	}

	earlyDeath := errors.Is(bodyErr, bridge.ErrChildProcessEarlyExit)
	if !earlyDeath {
		s.debugLog("Sending PyExit")
		if quit == "0" {
			s.logLine("info", "Driver control finished. Please exit the Tcl tool to continue.")
		}
		if sendErr := s.transport.Send(protocol.NewPyExit(quit).ToRaw()); sendErr != nil {
			s.debugLog(fmt.Sprintf("Send PyExit failed: %v", sendErr))
		}
	}

	s.debugLog("Session closing, waiting for child process to terminate.")
	waitErr := s.cmd.Wait()
	if s.ptmx != nil {
		s.ptmx.Close()
	}

	exitCode := 0
	if s.cmd.ProcessState != nil {
		exitCode = s.cmd.ProcessState.ExitCode()
	} else if waitErr != nil {
		exitCode = -1
	}

	log.Printf("session: child %v exited with code %d", s.argv, exitCode)

	if exitCode != 0 || earlyDeath {
		teardownErr := &ChildProcessFailedError{ExitCode: exitCode, Argv: s.argv}
		if heldErr != nil {
			return fmt.Errorf("%w (teardown: %w)", heldErr, teardownErr)
		}
		return teardownErr
	}

	return heldErr
}

// ObjectPosition implements handle.Caller.
func (s *Session) ObjectPosition() handle.ObjectPosition {
	return s.opts.CalledObjectPos
}

// ProcCall implements handle.Caller: renders name/args/kwargs into Tcl
// source text and evaluates the resulting command.
func (s *Session) ProcCall(name string, args []any, kwargs []tclvalue.Pair) (*handle.Handle, error) {
	cmd := renderCommand(name, args, kwargs)
	return s.Eval(cmd)
}

func renderCommand(name string, args []any, kwargs []tclvalue.Pair) string {
	parts := []string{name}
	for _, kw := range kwargs {
		key, _ := kw.Key.(string)
		if b, ok := kw.Value.(bool); ok {
			if b {
				parts = append(parts, "-"+key)
			}
			continue
		}
		parts = append(parts, "-"+key, tclvalue.Encode(kw.Value, false))
	}
	for _, arg := range args {
		parts = append(parts, tclvalue.Encode(arg, false))
	}
	return strings.Join(parts, " ")
}

// Eval sends cmd for evaluation and returns the resulting handle, or a
// *TclError if the child reported a non-zero err_code (the session remains
// usable after a TclError).
func (s *Session) Eval(cmd string) (*handle.Handle, error) {
	s.logLine("command", cmd)

	if err := s.transport.Send(protocol.NewPyProcedureCall(cmd).ToRaw()); err != nil {
		return nil, err
	}

	raw, err := s.transport.Recv()
	if err != nil {
		return nil, err
	}
	result, err := protocol.TclProcedureResultFromRaw(raw)
	if err != nil {
		return nil, err
	}

	errCode, err := strconv.Atoi(result.ErrCode)
	if err != nil {
		return nil, fmt.Errorf("session: parse err_code %q: %w", result.ErrCode, err)
	}
	cmdIdx, err := strconv.Atoi(result.CmdIdx)
	if err != nil {
		return nil, fmt.Errorf("session: parse cmd_idx %q: %w", result.CmdIdx, err)
	}

	s.History.Append(cmd, errCode, result.Result)

	if errCode != 0 {
		s.logLine("error", result.Result)
		return nil, &TclError{Text: result.Result}
	}

	s.logLine("retval", result.Result)
	return handle.New(s, cmdIdx, result.Result, cmd), nil
}

const (
	ansiYellow = "\x1b[93m"
	ansiBgRed  = "\x1b[41m"
	ansiBgGrn  = "\x1b[42m"
	ansiReset  = "\x1b[0m"
)

// logLine implements the four-level logging taxonomy: command and retval
// are gated by LogCommands/LogRetvals; info and error always print.
func (s *Session) logLine(kind, data string) {
	data = redact.Text(data)
	var symbol string
	switch kind {
	case "command":
		s.debugLog(fmt.Sprintf("Running command: %s", data))
		if !s.opts.LogCommands {
			return
		}
		symbol = "Cmd:"
	case "retval":
		s.debugLog(fmt.Sprintf("Return value: %s", data))
		if !s.opts.LogRetvals {
			return
		}
		symbol = "Result:"
	case "error":
		s.debugLog(fmt.Sprintf("Received error as return value: %s", data))
		symbol = "Error:"
	case "info":
		symbol = "Info:"
	}

	if !s.opts.LogFancy {
		fmt.Fprintf(s.stdout, "[notcl] %s %s\n", symbol, data)
		return
	}

	symbolStyle := ""
	if kind == "error" {
		symbolStyle = ansiBgRed
	} else if kind == "info" {
		symbolStyle = ansiBgGrn
	}
	fmt.Fprintf(s.stdout, "%s[notcl]%s %s%s%s %s\n", ansiYellow, ansiReset, symbolStyle, symbol, ansiReset, data)
}

func (s *Session) debugLog(msg string) {
	if s.opts.DebugPy {
		fmt.Fprintf(s.stdout, "[notcl] Driver: %s\n", msg)
	}
}

// Run opens a session against ad, hands it to body, and always tears it
// down afterward, applying the exit-code and held-exception policy. This
// is the Go analogue of entering and leaving the source's two nested
// context-manager scopes (transport, then session) as one guaranteed-
// acquire/release call.
func Run(ad adapter.Adapter, opts Options, body func(*Session) error) error {
	s, err := Open(ad, opts)
	if err != nil {
		return err
	}

	bodyErr := body(s)
	return s.Close(bodyErr)
}
