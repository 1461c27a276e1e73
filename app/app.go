// Package app wires the client together: API client, data cache,
// session store, form controllers, router and views, plus the
// interactive navigation shell.
package app

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/compareai/compare-client/apiclient"
	"github.com/compareai/compare-client/authform"
	"github.com/compareai/compare-client/cache"
	"github.com/compareai/compare-client/identity"
	"github.com/compareai/compare-client/internal/config"
	"github.com/compareai/compare-client/routes"
	"github.com/compareai/compare-client/session"
	"github.com/compareai/compare-client/views"
)

// App is the assembled client runtime
type App struct {
	cfg      config.Config
	api      *apiclient.Client
	data     *cache.Store
	sessions *session.Store
	forms    *authform.Controller
	router   *routes.Router
	out      io.Writer

	ctx context.Context

	mu           sync.Mutex
	current      string // last rendered path, re-evaluated on transitions
	loginForm    views.AuthForms
	registerForm views.AuthForms
}

// New assembles the client against the identity service named by cfg.
// The HTTP client carries the configured timeout and a cookie jar -
// the jar holds the service's session cookie, the only session
// continuity mechanism.
func New(cfg config.Config, out io.Writer) (*App, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "[app.New] cookiejar.New")
	}
	api, err := apiclient.New(cfg.GetAPIBaseURL(), &http.Client{
		Timeout: cfg.GetHTTPTimeout(),
		Jar:     jar,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[app.New] apiclient.New")
	}
	return newWithAPI(cfg, api, out)
}

func newWithAPI(cfg config.Config, api *apiclient.Client, out io.Writer) (*App, error) {
	data := cache.New()

	sessions, err := session.New(api, data)
	if err != nil {
		return nil, errors.Wrap(err, "[app.New] session.New")
	}

	forms, err := authform.NewController(sessions)
	if err != nil {
		return nil, errors.Wrap(err, "[app.New] authform.NewController")
	}

	a := &App{
		cfg:      cfg,
		api:      api,
		data:     data,
		sessions: sessions,
		forms:    forms,
		out:      out,
		ctx:      context.Background(),
	}

	router, err := routes.New(sessions, a.routeTable(), a.notFoundHandler)
	if err != nil {
		return nil, errors.Wrap(err, "[app.New] routes.New")
	}
	a.router = router

	// Every session transition re-evaluates the current path, so a
	// login lands on the requested view and a logout bounces off it.
	sessions.Subscribe(func(state session.State, ident *identity.Identity) {
		a.refresh()
	})

	return a, nil
}

// routeTable is the static route table: pattern, accessibility,
// handler, evaluated in order with a terminal catch-all.
func (a *App) routeTable() []routes.Route {
	return []routes.Route{
		{Pattern: routes.PathAuth, Access: routes.Public, Handler: a.authHandler},
		{Pattern: routes.PathPrivacyPolicy, Access: routes.Public, Handler: a.privacyPolicyHandler},
		{Pattern: routes.PathHome, Access: routes.Protected, Handler: a.homeHandler},
		{Pattern: routes.PathMatch, Access: routes.Protected, Handler: a.matchHandler},
	}
}

// Start loads the session and navigates to the default view. A failed
// load is not fatal: the state stays unknown and can be retried.
func (a *App) Start(ctx context.Context) {
	a.ctx = ctx
	if err := a.sessions.Load(ctx); err != nil {
		log.Err(err).Msg("session load failed; state held at unknown, retry with 'load'")
	}
	a.Navigate(routes.PathHome)
}

// Navigate resolves path through the route guard and renders the
// outcome, following redirects.
func (a *App) Navigate(path string) {
	const maxRedirects = 5
	for i := 0; i < maxRedirects; i++ {
		resolution := a.router.Resolve(path)
		if resolution.Redirect != "" {
			log.Debug().Str("from", path).Str("to", resolution.Redirect).Msg("redirect")
			path = resolution.Redirect
			continue
		}
		a.setCurrent(path)
		a.render(resolution.View)
		return
	}
	log.Error().Str("path", path).Msg("redirect loop detected")
}

// CurrentPath returns the last rendered path
func (a *App) CurrentPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Login submits the login form. On success the session transition
// redirects away from the auth view; on failure the auth view renders
// with the errors and the entered values preserved.
func (a *App) Login(username, password string) {
	a.mu.Lock()
	a.loginForm = views.AuthForms{Username: username, Password: password}
	a.mu.Unlock()

	result, err := a.forms.SubmitLogin(a.ctx, authform.LoginForm{Username: username, Password: password})
	if err != nil {
		log.Err(err).Msg("login rejected")
		return
	}
	if result.OK() {
		a.clearForms()
		return
	}

	a.mu.Lock()
	a.loginForm.FieldErrors = result.FieldErrors
	a.loginForm.FormError = result.FormError
	a.mu.Unlock()
	a.Navigate(routes.PathAuth)
}

// Register submits the registration form with the policy-acceptance
// flag. The flag is a client-only gate: it never reaches the service.
func (a *App) Register(username, password string, acceptPolicy bool) {
	a.mu.Lock()
	a.registerForm = views.AuthForms{Username: username, Password: password, AcceptPolicy: acceptPolicy}
	a.mu.Unlock()

	result, err := a.forms.SubmitRegister(a.ctx, authform.RegisterForm{
		Username:     username,
		Password:     password,
		AcceptPolicy: acceptPolicy,
	})
	if err != nil {
		log.Err(err).Msg("registration rejected")
		return
	}
	if result.OK() {
		a.clearForms()
		return
	}

	a.mu.Lock()
	a.registerForm.FieldErrors = result.FieldErrors
	a.registerForm.FormError = result.FormError
	a.mu.Unlock()
	a.Navigate(routes.PathAuth)
}

// Logout ends the session; the transition re-evaluates the current
// path and bounces any protected view to the auth view.
func (a *App) Logout() {
	if err := a.sessions.Logout(a.ctx); err != nil {
		log.Err(err).Msg("logout")
	}
}

// Load retries the initial identity check (used while the state is
// still unknown after a transient failure)
func (a *App) Load() {
	if err := a.sessions.Load(a.ctx); err != nil {
		log.Err(err).Msg("session load failed")
	}
	a.Navigate(a.CurrentPath())
}

// refresh re-resolves the current path after a session transition
func (a *App) refresh() {
	if path := a.CurrentPath(); path != "" {
		a.Navigate(path)
	}
}

func (a *App) setCurrent(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = path
}

func (a *App) clearForms() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loginForm = views.AuthForms{}
	a.registerForm = views.AuthForms{}
}

func (a *App) render(view views.View) {
	if err := view.Render(a.out); err != nil {
		log.Err(err).Str("view", view.Name()).Msg("render failed")
	}
}

func (a *App) authHandler(params routes.Params) views.View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return views.Auth{
		AppName:  a.cfg.GetAppName(),
		Login:    a.loginForm,
		Register: a.registerForm,
	}
}

func (a *App) privacyPolicyHandler(params routes.Params) views.View {
	return views.PrivacyPolicy{}
}

func (a *App) homeHandler(params routes.Params) views.View {
	_, ident := a.sessions.State()
	return views.Home{
		Identity:    ident,
		Leaderboard: a.leaderboard(),
	}
}

func (a *App) matchHandler(params routes.Params) views.View {
	_, ident := a.sessions.State()
	return views.Match{ID: params["id"], Identity: ident}
}

func (a *App) notFoundHandler(params routes.Params) views.View {
	return views.NotFound{Path: params["path"]}
}

// leaderboard reads the board through the cache. A failed fetch hides
// the panel; the next home render queries again.
func (a *App) leaderboard() []identity.Identity {
	value, _, err := a.data.Query(a.ctx, cache.KeyLeaderboard, func(ctx context.Context) (interface{}, error) {
		return a.api.Leaderboard(ctx)
	})
	if err != nil {
		log.Err(err).Msg("leaderboard fetch failed")
		return nil
	}
	idents, _ := value.([]identity.Identity)
	return idents
}
