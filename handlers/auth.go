package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/orbitalshelf/server/middleware"
	"github.com/orbitalshelf/server/models"
	"github.com/orbitalshelf/server/store"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	DB        *store.DB // nil when running without MongoDB
	JWTSecret string
	// Predefined credentials (from config); used if no user exists yet
	DefaultEmail string
	DefaultPass  string
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token  string `json:"token"`
	Email  string `json:"email"`
	UserID string `json:"userId"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, `{"error":"email and password required"}`, http.StatusBadRequest)
		return
	}

	userID, err := h.authenticate(r, &req)
	if err != nil {
		http.Error(w, `{"error":"invalid email or password"}`, http.StatusUnauthorized)
		return
	}

	token, err := h.createToken(userID, req.Email)
	if err != nil {
		http.Error(w, `{"error":"could not create token"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LoginResponse{Token: token, Email: req.Email, UserID: userID})
}

// authenticate resolves credentials to a stable user id. Without a database
// the predefined credentials still work and the id is derived from the email,
// so the local snapshot slot survives restarts and later Mongo adoption.
func (h *AuthHandler) authenticate(r *http.Request, req *LoginRequest) (string, error) {
	if h.DB == nil {
		if req.Email != h.DefaultEmail || req.Password != h.DefaultPass {
			return "", errInvalidCredentials
		}
		return fallbackUserID(req.Email), nil
	}

	user, err := h.DB.UserByEmail(r.Context(), req.Email)
	if err != nil {
		return "", err
	}
	if user == nil {
		// No user in DB yet: accept predefined credentials and seed the user.
		if req.Email != h.DefaultEmail || req.Password != h.DefaultPass {
			return "", errInvalidCredentials
		}
		user, err = h.ensureDefaultUser(r)
		if err != nil {
			return "", err
		}
		return user.ID.Hex(), nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return "", errInvalidCredentials
	}
	return user.ID.Hex(), nil
}

var errInvalidCredentials = &authError{"invalid email or password"}

type authError struct{ msg string }

func (e *authError) Error() string { return e.msg }

// fallbackUserID derives a deterministic id from the email for database-less
// deployments.
func fallbackUserID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("orbitalshelf:"+email)).String()
}

func (h *AuthHandler) ensureDefaultUser(r *http.Request) (*models.User, error) {
	// Check again in case of race
	user, err := h.DB.UserByEmail(r.Context(), h.DefaultEmail)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(h.DefaultPass), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	newUser := &models.User{
		Email:     h.DefaultEmail,
		Password:  string(hash),
		CreatedAt: time.Now(),
	}
	id, err := h.DB.CreateUser(r.Context(), newUser)
	if err != nil {
		return nil, err
	}
	newUser.ID = id
	return newUser, nil
}

func (h *AuthHandler) createToken(userID, email string) (string, error) {
	claims := &middleware.Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour * 7)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.JWTSecret))
}

type MeResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Me returns the identity behind the bearer token, the async-initialization
// counterpart of login for clients resuming a session.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(MeResponse{UserID: userID, Email: middleware.EmailFromContext(r.Context())})
}
