// Package auth provides JWT-based authentication and role checks.
//
// Users live in the database; when no database is configured (demo mode)
// an in-memory user table stands in so the server still gates mutations.
package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Kamii-Samaa/Product-Images/internal/logging"
	"github.com/Kamii-Samaa/Product-Images/internal/metrics"
	"github.com/Kamii-Samaa/Product-Images/pkg/protocol"
)

type contextKey string

const userContextKey contextKey = "user"

// Roles, in increasing order of privilege. Viewers browse and download;
// editors additionally mutate the namespace; admins manage users.
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

// CanMutate reports whether a role may change the namespace.
func CanMutate(role string) bool {
	return role == RoleEditor || role == RoleAdmin
}

// Claims holds JWT token claims.
type Claims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type userRecord struct {
	id       int
	username string
	hash     string
	role     string
}

// Auth handles JWT authentication against the users table.
type Auth struct {
	db     *sql.DB
	secret []byte

	// demo mode state, used only when db is nil
	mu     sync.Mutex
	users  map[string]*userRecord
	nextID int
}

// New creates an Auth handler. A nil db switches to the in-memory demo
// user table.
func New(db *sql.DB, jwtSecret string) *Auth {
	a := &Auth{
		db:     db,
		secret: []byte(jwtSecret),
	}
	if db == nil {
		a.users = make(map[string]*userRecord)
		a.nextID = 1
	}
	return a
}

// Middleware returns HTTP middleware that validates JWT tokens and injects
// the claims into the request context.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractToken(r)
		if tokenStr == "" {
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, "missing authentication token")
			return
		}

		claims, err := a.validateToken(tokenStr)
		if err != nil {
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, "invalid token: "+err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireEditor returns middleware that rejects viewers. Mutating routes
// wrap with this after Middleware; the rejection carries the "forbidden"
// error kind in the standard mutation envelope.
func (a *Auth) RequireEditor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r.Context())
		if claims == nil {
			sendAuthError(w, http.StatusUnauthorized, "missing authentication token")
			return
		}
		if !CanMutate(claims.Role) {
			logging.Warn("mutation forbidden",
				zap.String("username", claims.Username),
				zap.String("role", claims.Role),
				zap.String("path", r.URL.Path))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(protocol.Result{
				OK:        false,
				ErrorKind: "forbidden",
				Message:   "role " + claims.Role + " may not modify the namespace",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClaims extracts claims from the request context.
func GetClaims(ctx context.Context) *Claims {
	claims, _ := ctx.Value(userContextKey).(*Claims)
	return claims
}

// WithClaims injects claims into a context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

// HandleLogin handles POST /api/v1/auth/token.
func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordAuthAttempt(false)
		sendAuthError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		metrics.RecordAuthAttempt(false)
		sendAuthError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := a.lookupUser(r.Context(), req.Username)
	if err == sql.ErrNoRows {
		metrics.RecordAuthAttempt(false)
		logging.Warn("login failed: unknown user", zap.String("username", req.Username))
		sendAuthError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Error("login database error", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.hash), []byte(req.Password)); err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Warn("login failed: invalid password", zap.String("username", req.Username))
		sendAuthError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	now := time.Now()
	claims := &Claims{
		UserID:   user.id,
		Username: user.username,
		Role:     user.role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(30 * 24 * time.Hour)), // 30 days
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "productimages",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(a.secret)
	if err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Error("failed to sign token", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	metrics.RecordAuthAttempt(true)
	logging.Info("login successful",
		zap.String("username", user.username),
		zap.String("role", user.role))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"token":      tokenStr,
		"expires_at": claims.ExpiresAt.Time,
		"user": map[string]interface{}{
			"id":       user.id,
			"username": user.username,
			"role":     user.role,
		},
	})
}

// CreateUser creates a new user with a bcrypt-hashed password.
func (a *Auth) CreateUser(ctx context.Context, username, password, role string) error {
	switch role {
	case RoleViewer, RoleEditor, RoleAdmin:
	default:
		return fmt.Errorf("unknown role: %s", role)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if a.db == nil {
		a.mu.Lock()
		defer a.mu.Unlock()
		if _, exists := a.users[username]; exists {
			return fmt.Errorf("user %s already exists", username)
		}
		a.users[username] = &userRecord{
			id:       a.nextID,
			username: username,
			hash:     string(hashed),
			role:     role,
		}
		a.nextID++
	} else {
		_, err = a.db.ExecContext(ctx,
			`INSERT INTO users (username, password, role) VALUES ($1, $2, $3)`,
			username, string(hashed), role)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
	}

	logging.Info("user created", zap.String("username", username), zap.String("role", role))
	return nil
}

// EnsureDefaultAdmin creates a default admin user if no users exist.
func (a *Auth) EnsureDefaultAdmin(ctx context.Context) error {
	count, err := a.userCount(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}

	if count == 0 {
		logging.Warn("no users found, creating default admin (admin/admin)")
		logging.Warn("** change the default password immediately! **")
		return a.CreateUser(ctx, "admin", "admin", RoleAdmin)
	}
	return nil
}

func (a *Auth) userCount(ctx context.Context) (int, error) {
	if a.db == nil {
		a.mu.Lock()
		defer a.mu.Unlock()
		return len(a.users), nil
	}
	var count int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func (a *Auth) lookupUser(ctx context.Context, username string) (*userRecord, error) {
	if a.db == nil {
		a.mu.Lock()
		defer a.mu.Unlock()
		u, ok := a.users[username]
		if !ok {
			return nil, sql.ErrNoRows
		}
		return u, nil
	}

	u := &userRecord{username: username}
	err := a.db.QueryRowContext(ctx,
		`SELECT id, password, role FROM users WHERE username = $1`,
		username).Scan(&u.id, &u.hash, &u.role)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (a *Auth) validateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})

	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func extractToken(r *http.Request) string {
	// Bearer token from Authorization header
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	// Query parameter fallback, needed by EventSource clients which
	// cannot set headers
	return r.URL.Query().Get("token")
}

func sendAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
