// Package wire is the HTTP login/dispatch adapter spec.md §6.2 sketches:
// a login endpoint that mints an opaque token, and a token->Connection map
// later requests key off. It is explicitly out of core (spec.md §1) and
// carries no algorithmic content beyond routing and token bookkeeping.
package wire

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fsnow/internal/client"
)

// Server holds the token->Connection map the wire adapter dispatches
// requests through, and the signing key used to mint login tokens.
type Server struct {
	router     chi.Router
	signingKey []byte
	opts       client.Options
	log        *logrus.Entry

	mu    sync.RWMutex
	conns map[string]*client.Connection
}

// New builds a Server with its routes registered, ready to be used as an
// http.Handler or mounted under a larger mux.
func New(signingKey []byte, baseOpts client.Options, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		router:     chi.NewRouter(),
		signingKey: signingKey,
		opts:       baseOpts,
		log:        log.WithField("component", "wire"),
		conns:      map[string]*client.Connection{},
	}
	s.router.Use(middleware.Recoverer)
	s.router.Post("/session/v1/login-request", s.handleLogin)
	s.router.Post("/queries/v1/query-request", s.handleQuery)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

type loginResponse struct {
	Data    loginData `json:"data"`
	Success bool      `json:"success"`
}

type loginData struct {
	Token string `json:"token"`
}

// handleLogin implements spec.md §6.2's
// `POST /session/v1/login-request?databaseName=...&schemaName=...`.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	opts := s.opts
	if db := r.URL.Query().Get("databaseName"); db != "" {
		opts.Database = db
	}
	if sc := r.URL.Query().Get("schemaName"); sc != "" {
		opts.Schema = sc
	}
	conn, err := client.Connect(r.Context(), opts)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	token, err := s.mintToken()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.mu.Lock()
	s.conns[token] = conn
	s.mu.Unlock()

	s.writeJSON(w, loginResponse{Data: loginData{Token: token}, Success: true})
}

type queryRequest struct {
	SQLText string `json:"sqlText"`
}

type queryResponse struct {
	Data    queryData `json:"data"`
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
}

type queryData struct {
	RowType  []string `json:"rowType"`
	RowSet   [][]any  `json:"rowSet"`
	RowCount int64    `json:"rowCount"`
	SFQID    string   `json:"statementHandle"`
}

// handleQuery dispatches an already-authenticated request to the
// Connection its bearer token maps to; the token->Connection lookup spec.md
// §6.2 describes.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.authenticate(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errUnauthorized)
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	cur := conn.Cursor()
	if err := cur.Execute(r.Context(), req.SQLText); err != nil {
		s.writeJSON(w, queryResponse{Success: false, Message: err.Error()})
		return
	}
	cols := cur.Description()
	rowType := make([]string, len(cols))
	for i, c := range cols {
		rowType[i] = c.Name
	}
	var rowSet [][]any
	for _, row := range cur.FetchAll() {
		tuple := make([]any, len(rowType))
		for i, name := range rowType {
			tuple[i] = row[name]
		}
		rowSet = append(rowSet, tuple)
	}
	s.writeJSON(w, queryResponse{
		Data:    queryData{RowType: rowType, RowSet: rowSet, RowCount: cur.RowCount(), SFQID: cur.SFQID()},
		Success: true,
	})
}

func (s *Server) authenticate(r *http.Request) (*client.Connection, bool) {
	bearer := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(bearer) <= len(prefix) || bearer[:len(prefix)] != prefix {
		return nil, false
	}
	token := bearer[len(prefix):]
	s.mu.RLock()
	conn, ok := s.conns[token]
	s.mu.RUnlock()
	return conn, ok
}

func (s *Server) mintToken() (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(4 * time.Hour)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.signingKey)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	s.writeJSON(w, map[string]any{"success": false, "message": err.Error()})
}

var errUnauthorized = &authError{}

type authError struct{}

func (*authError) Error() string { return "unauthorized: unknown or expired session token" }
