// Package identitytest provides an in-process identity service for
// tests: bcrypt-hashed accounts, a signed session cookie, and the four
// /api endpoints the client consumes. It stands in for the real
// comparison service so API-client and end-to-end tests exercise the
// full HTTP contract.
package identitytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/compareai/compare-client/identity"
)

// SessionCookieName is the cookie carrying the signed session token
const SessionCookieName = "compare_session"

const sessionLifetime = 24 * time.Hour

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

type account struct {
	ident        identity.Identity
	passwordHash string
}

// Server is the fake identity service. Close it when done.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	accounts   map[string]*account
	nextID     int
	signingKey []byte
}

// New starts a fake identity service on a local listener
func New() *Server {
	s := &Server{
		accounts:   make(map[string]*account),
		nextID:     1,
		signingKey: []byte(uuid.New().String()),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/user", s.handleUser)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)

	s.Server = httptest.NewServer(mux)
	return s
}

// AddAccount pre-seeds an account with a bcrypt-hashed password and
// returns its identity
func (s *Server) AddAccount(username, password string, score int) identity.Identity {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic("identitytest: bcrypt hash failed: " + err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ident := identity.Identity{ID: s.nextID, Username: username, Score: score}
	s.nextID++
	s.accounts[username] = &account{ident: ident, passwordHash: string(hash)}
	return ident
}

// SetScore updates an account's server-side score
func (s *Server) SetScore(username string, score int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[username]; ok {
		acc.ident.Score = score
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds identity.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[creds.Username]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword([]byte(acc.passwordHash), []byte(creds.Password)) != nil {
		writeMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.setSessionCookie(w, creds.Username)
	writeJSON(w, acc.ident)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds identity.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if creds.Username == "" || creds.Password == "" {
		writeMessage(w, http.StatusBadRequest, "username and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.MinCost)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	s.mu.Lock()
	if _, ok := s.accounts[creds.Username]; ok {
		s.mu.Unlock()
		writeMessage(w, http.StatusConflict, "username already taken")
		return
	}
	ident := identity.Identity{ID: s.nextID, Username: creds.Username, Score: 0}
	s.nextID++
	s.accounts[creds.Username] = &account{ident: ident, passwordHash: string(hash)}
	s.mu.Unlock()

	s.setSessionCookie(w, creds.Username)
	writeJSON(w, ident)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	username, ok := s.sessionUser(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "no active session")
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[username]
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "no active session")
		return
	}
	writeJSON(w, acc.ident)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	idents := make([]identity.Identity, 0, len(s.accounts))
	for _, acc := range s.accounts {
		idents = append(idents, acc.ident)
	}
	s.mu.Unlock()

	// Ranking is this server's concern: highest score first, id as
	// tie-break. The client renders the list as-is.
	sort.Slice(idents, func(i, j int) bool {
		if idents[i].Score != idents[j].Score {
			return idents[i].Score > idents[j].Score
		}
		return idents[i].ID < idents[j].ID
	})
	writeJSON(w, idents)
}

// setSessionCookie issues a signed session token for username
func (s *Server) setSessionCookie(w http.ResponseWriter, username string) {
	claims := jwtlib.MapClaims{
		"sub": username,
		"iat": int64(NowTimeFunc().Unix()),
		"exp": int64(NowTimeFunc().Add(sessionLifetime).Unix()),
		"jti": uuid.New().String(),
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		panic("identitytest: token signing failed: " + err.Error())
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
	})
}

// sessionUser verifies the session cookie and returns its subject
func (s *Server) sessionUser(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	token, err := jwtlib.Parse(cookie.Value, func(t *jwtlib.Token) (interface{}, error) {
		return s.signingKey, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}), jwtlib.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", false
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", false
	}
	return subject, true
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
