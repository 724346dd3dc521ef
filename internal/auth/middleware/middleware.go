package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	hmac  []byte
	db    *sql.DB
	admin adminCreds
}

type adminCreds struct {
	user     string
	passHash string
}

func NewService(secret string, db *sql.DB, adminUser, adminPassHash string) *Service {
	return &Service{
		hmac:  []byte(secret),
		db:    db,
		admin: adminCreds{user: adminUser, passHash: adminPassHash},
	}
}

type Claims struct {
	Sub string `json:"sub"`
	jwt.RegisteredClaims
}

func (s *Service) IssueJWT(sub string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Sub: sub,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "studygate",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(8 * time.Hour)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.hmac)
}

func (s *Service) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.hmac, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	c, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	return c, nil
}

// Login checks credentials against the users table, falling back to the
// configured admin account, and returns the user id to put in the token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	var id, hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, pass_hash FROM users WHERE username=$1`, username).Scan(&id, &hash)
	switch {
	case err == nil:
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
			return "", errors.New("invalid credentials")
		}
		return id, nil
	case errors.Is(err, sql.ErrNoRows):
		if s.admin.user != "" && username == s.admin.user && s.admin.passHash != "" &&
			bcrypt.CompareHashAndPassword([]byte(s.admin.passHash), []byte(password)) == nil {
			return "admin", nil
		}
		return "", errors.New("invalid credentials")
	default:
		return "", err
	}
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	if username == "" || len(password) < 6 {
		return "", errors.New("username required and password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id,username,pass_hash,created_at) VALUES ($1,$2,$3,$4)`,
		id, username, string(hash), time.Now().Unix())
	if err != nil {
		return "", err
	}
	return id, nil
}

// JWTMiddleware rejects requests without a valid bearer token and stores the
// subject on the request context.
func JWTMiddleware(s *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := s.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), claims.Sub)))
		})
	}
}
