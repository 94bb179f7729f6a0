package cli

import (
	"fmt"
	"io"
	"strings"

	fleetAuth "github.com/MrEthical07/fleetAuth"
)

func formatState(s fleetAuth.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "stage=%s", s.Stage)
	if s.Branch != fleetAuth.BranchNone {
		fmt.Fprintf(&b, " branch=%s", s.Branch)
	}
	if s.Inputs.Email != "" {
		fmt.Fprintf(&b, " email=%s", s.Inputs.Email)
	}
	if s.Stage == fleetAuth.StageAwaitingOTP {
		if s.ResendCooldownSeconds > 0 {
			fmt.Fprintf(&b, " resend_in=%ds", s.ResendCooldownSeconds)
		} else {
			b.WriteString(" resend=ready")
		}
	}
	if s.Busy {
		b.WriteString(" busy")
	}
	return b.String()
}

func prompt(s fleetAuth.State) string {
	switch s.Stage {
	case fleetAuth.StageAwaitingOTP:
		return "otp> "
	case fleetAuth.StagePasswordChangeRequired:
		return "password> "
	case fleetAuth.StageAuthenticated:
		return "fleet> "
	default:
		return "auth> "
	}
}

// watch prints background changes until ch closes: cooldown expiry and
// sign-outs the user did not type. Intent results are printed by the REPL.
func watch(ch <-chan fleetAuth.State, w io.Writer) {
	var last fleetAuth.State
	for s := range ch {
		if s.Stage == fleetAuth.StageAwaitingOTP &&
			last.ResendCooldownSeconds > 0 && s.ResendCooldownSeconds == 0 {
			fmt.Fprintln(w, "\nyou can now resend the code (resend)")
		}
		last = s
	}
}
