package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/compareai/compare-client/apiclient"
	"github.com/compareai/compare-client/identity/identitytest"
	"github.com/compareai/compare-client/internal/config"
	"github.com/compareai/compare-client/routes"
)

const (
	testUsername = "alice"
	testPassword = "secret1"
)

// testConfig points the client at the in-process identity service
type testConfig struct {
	config.EnvVars
	baseURL string
	timeout time.Duration
}

func (c *testConfig) GetAPIBaseURL() string { return c.baseURL }
func (c *testConfig) GetAppName() string    { return "Compare AI" }

func (c *testConfig) GetHTTPTimeout() time.Duration {
	if c.timeout == 0 {
		return c.EnvVars.GetHTTPTimeout()
	}
	return c.timeout
}

type testFixture struct {
	server *identitytest.Server
	app    *App
	out    *bytes.Buffer
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	server := identitytest.New()
	t.Cleanup(server.Close)

	out := &bytes.Buffer{}
	api, err := apiclient.New(server.URL, nil)
	require.NoError(t, err)
	a, err := newWithAPI(&testConfig{baseURL: server.URL}, api, out)
	require.NoError(t, err)

	return &testFixture{server: server, app: a, out: out}
}

func TestStartWithoutSessionLandsOnAuth(t *testing.T) {
	f := setupTestFixture(t)

	f.app.Start(context.Background())

	require.Equal(t, routes.PathAuth, f.app.CurrentPath())
	require.Contains(t, f.out.String(), "Compare AI")
}

func TestStartWithActiveSessionLandsOnHome(t *testing.T) {
	f := setupTestFixture(t)
	f.server.AddAccount(testUsername, testPassword, 3)

	// Establish a session cookie in the client's jar first.
	f.app.Start(context.Background())
	f.app.Login(testUsername, testPassword)
	f.out.Reset()

	f.app.Navigate(routes.PathHome)

	require.Equal(t, routes.PathHome, f.app.CurrentPath())
	require.Contains(t, f.out.String(), "Welcome back, alice (score 3)")
}

func TestStartWhileServiceDownHoldsLoading(t *testing.T) {
	f := setupTestFixture(t)
	f.server.Close()

	f.app.Start(context.Background())

	// State unknown: the protected default view renders the loading
	// placeholder and is never redirected to login.
	require.Equal(t, routes.PathHome, f.app.CurrentPath())
	require.Contains(t, f.out.String(), "Checking session...")
	require.NotContains(t, f.out.String(), "Compare AI")
}

func TestRegisterNavigatesToHome(t *testing.T) {
	f := setupTestFixture(t)
	f.app.Start(context.Background())
	f.out.Reset()

	f.app.Register(testUsername, testPassword, true)

	require.Equal(t, routes.PathHome, f.app.CurrentPath())
	require.Contains(t, f.out.String(), "Welcome back, alice (score 0)")
}

func TestRegisterWithoutPolicyStaysOnAuth(t *testing.T) {
	f := setupTestFixture(t)
	f.app.Start(context.Background())
	f.out.Reset()

	f.app.Register(testUsername, testPassword, false)

	require.Equal(t, routes.PathAuth, f.app.CurrentPath())
	require.Contains(t, f.out.String(), "You must accept the privacy policy to register")
	// Entered values are preserved on the re-rendered form.
	require.Contains(t, f.out.String(), testUsername)
}

func TestRegisterFailurePreservesPolicyChoice(t *testing.T) {
	f := setupTestFixture(t)
	f.server.AddAccount(testUsername, testPassword, 0)
	f.app.Start(context.Background())
	f.out.Reset()

	f.app.Register(testUsername, "other-secret", true)

	require.Equal(t, routes.PathAuth, f.app.CurrentPath())
	output := f.out.String()
	require.Contains(t, output, "username already taken")
	// The accepted policy checkbox survives the failed submit along
	// with the entered values.
	require.Contains(t, output, "accepted")
}

func TestLoginFailureStaysOnAuthWithFormError(t *testing.T) {
	f := setupTestFixture(t)
	f.server.AddAccount(testUsername, testPassword, 0)
	f.app.Start(context.Background())
	f.out.Reset()

	f.app.Login(testUsername, "wrong-1")

	require.Equal(t, routes.PathAuth, f.app.CurrentPath())
	require.Contains(t, f.out.String(), "invalid credentials")
	require.Contains(t, f.out.String(), testUsername)
}

func TestDeepLinkResumesAfterLogin(t *testing.T) {
	f := setupTestFixture(t)
	f.server.AddAccount(testUsername, testPassword, 0)
	f.app.Start(context.Background())

	f.app.Navigate("/match/42")
	require.Equal(t, routes.PathAuth, f.app.CurrentPath())

	f.out.Reset()
	f.app.Login(testUsername, testPassword)

	// The session transition re-resolved the auth path and the
	// authenticated redirect landed on home.
	require.Equal(t, routes.PathHome, f.app.CurrentPath())

	f.out.Reset()
	f.app.Navigate("/match/42")
	require.Equal(t, "/match/42", f.app.CurrentPath())
	require.Contains(t, f.out.String(), "Match 42")
	require.Contains(t, f.out.String(), "Playing as alice")
}

func TestLogoutBouncesProtectedView(t *testing.T) {
	f := setupTestFixture(t)
	f.server.AddAccount(testUsername, testPassword, 0)
	f.app.Start(context.Background())
	f.app.Login(testUsername, testPassword)
	require.Equal(t, routes.PathHome, f.app.CurrentPath())

	f.out.Reset()
	f.app.Logout()

	require.Equal(t, routes.PathAuth, f.app.CurrentPath())
	require.Contains(t, f.out.String(), "Compare AI")
}

func TestHomeRendersLeaderboard(t *testing.T) {
	f := setupTestFixture(t)
	f.server.AddAccount(testUsername, testPassword, 5)
	f.server.AddAccount("bob", testPassword, 9)
	f.app.Start(context.Background())

	f.out.Reset()
	f.app.Login(testUsername, testPassword)

	output := f.out.String()
	require.Contains(t, output, "Leaderboard")
	require.Contains(t, output, "* bob")
	require.Contains(t, output, "alice")
}

func TestNotFoundForUnknownPath(t *testing.T) {
	f := setupTestFixture(t)
	f.server.AddAccount(testUsername, testPassword, 0)
	f.app.Start(context.Background())
	f.app.Login(testUsername, testPassword)

	f.out.Reset()
	f.app.Navigate("/nope")

	require.Equal(t, "/nope", f.app.CurrentPath())
	require.Contains(t, f.out.String(), "404 - no such page: /nope")
}

func TestNewAppliesConfiguredHTTPTimeout(t *testing.T) {
	// A server slower than the configured timeout: the identity check
	// must give up instead of waiting out the response.
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":1,"username":"alice","score":0}`)
	}))
	t.Cleanup(slow.Close)

	out := &bytes.Buffer{}
	a, err := New(&testConfig{baseURL: slow.URL, timeout: 20 * time.Millisecond}, out)
	require.NoError(t, err)

	a.Start(context.Background())

	require.Contains(t, out.String(), "Checking session...")
	require.NotContains(t, out.String(), "Welcome back")
}

func TestLoadRetryWhileServiceDown(t *testing.T) {
	unreachable, err := apiclient.New("http://127.0.0.1:1", nil)
	require.NoError(t, err)
	a, err := newWithAPI(&testConfig{baseURL: "http://127.0.0.1:1"}, unreachable, &bytes.Buffer{})
	require.NoError(t, err)

	a.Start(context.Background())
	require.Equal(t, routes.PathHome, a.CurrentPath())

	// Still unavailable: the retry keeps the loading view.
	a.Load()
	require.Equal(t, routes.PathHome, a.CurrentPath())
}

func TestShellQuitAndUnknownCommand(t *testing.T) {
	f := setupTestFixture(t)

	input := strings.NewReader("bogus\nhelp\nquit\n")
	require.NoError(t, f.app.Run(context.Background(), input))

	output := f.out.String()
	require.Contains(t, output, `unknown command "bogus"`)
	require.Contains(t, output, "commands:")
}

func TestShellDrivesFullSession(t *testing.T) {
	f := setupTestFixture(t)
	f.server.AddAccount("bob", testPassword, 2)

	input := strings.NewReader(strings.Join([]string{
		"register alice secret1 accept",
		"open /match/7",
		"whoami",
		"logout",
		"whoami",
		"quit",
	}, "\n") + "\n")
	require.NoError(t, f.app.Run(context.Background(), input))

	output := f.out.String()
	require.Contains(t, output, "Welcome back, alice (score 0)")
	require.Contains(t, output, "Match 7")
	require.Contains(t, output, "alice (score 0)")
	require.Contains(t, output, "session: unauthenticated")
}
