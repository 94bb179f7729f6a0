// Package cli is the interactive terminal front end for the orchestrator.
//
// Commands:
//
//	login <email>            prompts for the password
//	otp <code>               verifies the one-time code
//	resend                   resends the code once the cooldown ends
//	password                 prompts for a new password twice
//	forgot <email>           starts a password reset
//	signout                  signs out
//	status                   prints the current state
//	help                     lists commands
//	quit | exit              leaves the program
package cli
