package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	fleetAuth "github.com/MrEthical07/fleetAuth"
)

// Orchestrator is the intent surface the REPL drives.
type Orchestrator interface {
	Login(ctx context.Context, email, password string) error
	VerifyOTP(ctx context.Context, code string) error
	ResendOTP(ctx context.Context) error
	ChangePassword(ctx context.Context, newPassword, confirm string) error
	ForgotPassword(ctx context.Context, email string) error
	SignOut(ctx context.Context) error
	Snapshot() fleetAuth.State
	DismissAlert()
}

const helpText = `commands:
  login <email>    sign in (password is prompted)
  otp <code>       verify the 6-digit code
  resend           resend the code
  password         set a new password
  forgot <email>   reset a forgotten password
  signout          sign out
  status           show the current state
  quit             exit`

// REPL reads commands from in and writes results to out.
type REPL struct {
	o   Orchestrator
	in  *bufio.Reader
	out io.Writer
}

// NewREPL returns a REPL bound to o.
func NewREPL(o Orchestrator, in io.Reader, out io.Writer) *REPL {
	return &REPL{o: o, in: bufio.NewReader(in), out: out}
}

// Watch reports cooldown expiry from a subscription until it closes. Run it
// in its own goroutine.
func (r *REPL) Watch(ch <-chan fleetAuth.State) {
	watch(ch, r.out)
}

// Run loops until EOF, quit or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, formatState(r.o.Snapshot()))
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(r.out, prompt(r.o.Snapshot()))
		line, err := r.in.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if !r.dispatch(ctx, fields[0], fields[1:]) {
			return nil
		}
	}
}

// dispatch runs one command and reports whether the loop should continue.
func (r *REPL) dispatch(ctx context.Context, cmd string, args []string) bool {
	r.o.DismissAlert()

	var err error
	switch cmd {
	case "help", "?":
		fmt.Fprintln(r.out, helpText)
		return true

	case "login":
		email, ok := r.arg(args, "usage: login <email>")
		if !ok {
			return true
		}
		var pw string
		if pw, err = promptSecret(r.in, r.out, "password: "); err == nil {
			err = r.o.Login(ctx, email, pw)
		}

	case "otp":
		code, ok := r.arg(args, "usage: otp <code>")
		if !ok {
			return true
		}
		err = r.o.VerifyOTP(ctx, code)

	case "resend":
		if s := r.o.Snapshot(); s.Stage == fleetAuth.StageAwaitingOTP && s.ResendCooldownSeconds > 0 {
			fmt.Fprintf(r.out, "resend available in %ds\n", s.ResendCooldownSeconds)
			return true
		}
		err = r.o.ResendOTP(ctx)

	case "password":
		var pw, confirm string
		if pw, err = promptSecret(r.in, r.out, "new password: "); err == nil {
			if confirm, err = promptSecret(r.in, r.out, "confirm password: "); err == nil {
				err = r.o.ChangePassword(ctx, pw, confirm)
			}
		}

	case "forgot":
		email, ok := r.arg(args, "usage: forgot <email>")
		if !ok {
			return true
		}
		err = r.o.ForgotPassword(ctx, email)

	case "signout", "logout":
		err = r.o.SignOut(ctx)

	case "status":

	case "quit", "exit":
		fmt.Fprintln(r.out, "bye")
		return false

	default:
		fmt.Fprintf(r.out, "unknown command %q (try help)\n", cmd)
		return true
	}

	r.report(err)
	return true
}

func (r *REPL) arg(args []string, usage string) (string, bool) {
	if len(args) != 1 {
		fmt.Fprintln(r.out, usage)
		return "", false
	}
	return args[0], true
}

// report prints the intent result. Alerts carry the user-facing message;
// orchestration errors raise none, so they are printed here.
func (r *REPL) report(err error) {
	s := r.o.Snapshot()
	switch {
	case s.Alert.Visible:
		fmt.Fprintf(r.out, "%s: %s\n", s.Alert.Kind, s.Alert.Message)
	case err == nil:
	case errors.Is(err, fleetAuth.ErrBusy):
		fmt.Fprintln(r.out, "another request is still running")
	case errors.Is(err, fleetAuth.ErrInvalidTransition):
		fmt.Fprintln(r.out, "not available right now")
	case errors.Is(err, fleetAuth.ErrNotReady):
		fmt.Fprintln(r.out, "still starting up")
	case errors.Is(err, fleetAuth.ErrSuperseded):
		fmt.Fprintln(r.out, "request cancelled by sign-out")
	case errors.Is(err, fleetAuth.ErrClosed):
		fmt.Fprintln(r.out, "shutting down")
	default:
		fmt.Fprintln(r.out, "error:", err)
	}
	fmt.Fprintln(r.out, formatState(s))
}
