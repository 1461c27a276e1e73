package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/compareai/compare-client/routes"
	"github.com/compareai/compare-client/session"
)

// Run starts the session and drives the interactive shell until EOF or
// quit. Commands map onto the client's operations; navigation goes
// through the route guard like any other path resolution.
func (a *App) Run(ctx context.Context, in io.Reader) error {
	a.Start(ctx)

	scanner := bufio.NewScanner(in)
	a.prompt()
	for scanner.Scan() {
		if !a.dispatch(strings.Fields(scanner.Text())) {
			return nil
		}
		a.prompt()
	}
	return scanner.Err()
}

// dispatch runs one shell command; returns false to exit
func (a *App) dispatch(args []string) bool {
	if len(args) == 0 {
		return true
	}

	switch args[0] {
	case "open":
		if len(args) != 2 {
			a.usage("open <path>")
			return true
		}
		a.Navigate(args[1])
	case "login":
		if len(args) != 3 {
			a.usage("login <username> <password>")
			return true
		}
		a.Login(args[1], args[2])
	case "register":
		if len(args) != 3 && len(args) != 4 {
			a.usage("register <username> <password> [accept]")
			return true
		}
		a.Register(args[1], args[2], len(args) == 4 && args[3] == "accept")
	case "logout":
		a.Logout()
	case "whoami":
		state, ident := a.sessions.State()
		if state == session.StateAuthenticated {
			fmt.Fprintf(a.out, "%s (score %d)\n", ident.Username, ident.Score)
		} else {
			fmt.Fprintf(a.out, "session: %s\n", state)
		}
	case "load":
		a.Load()
	case "policy":
		a.Navigate(routes.PathPrivacyPolicy)
	case "help":
		fmt.Fprintln(a.out, "commands: open <path> | login <u> <p> | register <u> <p> [accept] | logout | whoami | load | policy | quit")
	case "quit", "exit":
		return false
	default:
		fmt.Fprintf(a.out, "unknown command %q - try 'help'\n", args[0])
	}
	return true
}

func (a *App) usage(usage string) {
	fmt.Fprintf(a.out, "usage: %s\n", usage)
}

func (a *App) prompt() {
	fmt.Fprintf(a.out, "\n[%s]> ", a.CurrentPath())
}
