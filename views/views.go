// Package views holds the client's renderable views. Views are plain
// data: route handlers construct them, the shell renders them to a
// writer. Layout and theming are deliberately minimal.
package views

import (
	"fmt"
	"io"

	"github.com/compareai/compare-client/identity"
)

// View is a renderable navigation target
type View interface {
	Name() string
	Render(w io.Writer) error
}

// printer writes sequential lines, remembering the first write error
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// Loading is the placeholder rendered while the session state is still
// unknown. It is shown instead of a login redirect so a valid session
// is never bounced to login before the first identity check resolves.
type Loading struct{}

func (Loading) Name() string { return "loading" }

func (Loading) Render(w io.Writer) error {
	_, err := fmt.Fprintln(w, "Checking session...")
	return err
}

// NotFound is the terminal catch-all view
type NotFound struct {
	Path string
}

func (NotFound) Name() string { return "not-found" }

func (v NotFound) Render(w io.Writer) error {
	_, err := fmt.Fprintf(w, "404 - no such page: %s\n", v.Path)
	return err
}

// PrivacyPolicy is the public static policy view
type PrivacyPolicy struct{}

func (PrivacyPolicy) Name() string { return "privacy-policy" }

func (PrivacyPolicy) Render(w io.Writer) error {
	p := &printer{w: w}
	p.printf("Privacy Policy\n")
	p.printf("--------------\n")
	p.printf("Accounts consist of a username and a score. Credentials are\n")
	p.printf("sent to the comparison service only to establish a session and\n")
	p.printf("are never stored on this device.\n")
	return p.err
}

// Home is the protected default landing view
type Home struct {
	Identity    *identity.Identity
	Leaderboard []identity.Identity
}

func (Home) Name() string { return "home" }

func (v Home) Render(w io.Writer) error {
	p := &printer{w: w}
	if v.Identity != nil {
		p.printf("Welcome back, %s (score %d)\n", v.Identity.Username, v.Identity.Score)
	}
	p.printf("Start a match with: open /match/<id>\n")
	renderLeaderboard(p, v.Leaderboard)
	return p.err
}

// Match is the protected comparison-session view, addressed by the
// session identifier path segment
type Match struct {
	ID       string
	Identity *identity.Identity
}

func (Match) Name() string { return "match" }

func (v Match) Render(w io.Writer) error {
	p := &printer{w: w}
	p.printf("Match %s\n", v.ID)
	if v.Identity != nil {
		p.printf("Playing as %s\n", v.Identity.Username)
	}
	return p.err
}

// renderLeaderboard writes the leaderboard panel in the order the
// server returned it (the client never re-sorts). An empty board
// renders nothing.
func renderLeaderboard(p *printer, entries []identity.Identity) {
	if len(entries) == 0 {
		return
	}
	p.printf("\nLeaderboard\n")
	for i, entry := range entries {
		marker := "  "
		if i == 0 {
			marker = "* " // top of the board
		}
		p.printf("%s%-30s %d\n", marker, entry.Username, entry.Score)
	}
}
