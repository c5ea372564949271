package internal

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"nearcast/internal/storage"
)

var errUnauthorized = errors.New("unauthorized")

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	Headline string `json:"headline"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userDTO   `json:"user"`
}

type userDTO struct {
	ID        int64           `json:"id"`
	Email     string          `json:"email"`
	Username  string          `json:"username"`
	Headline  *string         `json:"headline"`
	Pronouns  *string         `json:"pronouns"`
	Avatar    json.RawMessage `json:"avatar_data"`
	CreatedAt time.Time       `json:"created_at"`
}

type pronounsRequest struct {
	Pronouns *string `json:"pronouns"`
}

type headlineRequest struct {
	Headline *string `json:"headline"`
}

type avatarRequest struct {
	Avatar json.RawMessage `json:"avatar_data"`
}

func userToDTO(user *storage.User) userDTO {
	return userDTO{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Headline:  user.Headline,
		Pronouns:  user.Pronouns,
		Avatar:    user.Avatar,
		CreatedAt: user.CreatedAt,
	}
}

// tokenIssuer is implemented by authenticators that can also mint tokens;
// the login handlers need it while the websocket path only verifies.
type tokenIssuer interface {
	Issue(userID int64) (string, time.Time, error)
}

// HandleRegister creates an account with a randomized default avatar and
// returns a fresh token so the client can connect immediately.
func (s *Server) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)
	if email == "" || username == "" || password == "" {
		writeError(w, http.StatusBadRequest, errors.New("email, username and password are required"))
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	var headline *string
	if trimmed := strings.TrimSpace(req.Headline); trimmed != "" {
		headline = &trimmed
	}
	id, err := s.store.CreateUser(r.Context(), email, username, hash, headline, DefaultAvatar())
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) || errors.Is(err, storage.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	user, err := s.store.GetUserByID(r.Context(), id)
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, errors.New("account lookup failed"))
		return
	}
	s.writeAuthResponse(w, http.StatusCreated, user)
}

// HandleLogin verifies credentials and returns a token plus the profile.
func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)
	if email == "" || password == "" {
		writeError(w, http.StatusBadRequest, errors.New("email and password are required"))
		return
	}
	user, err := s.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		writeError(w, http.StatusUnauthorized, errors.New("invalid credentials"))
		return
	}
	s.writeAuthResponse(w, http.StatusOK, user)
}

func (s *Server) writeAuthResponse(w http.ResponseWriter, status int, user *storage.User) {
	issuer, ok := s.auth.(tokenIssuer)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("token issuing not supported"))
		return
	}
	token, expiresAt, err := issuer.Issue(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, status, authResponse{Token: token, ExpiresAt: expiresAt, User: userToDTO(user)})
}

// HandleProfile returns the authenticated user's profile.
func (s *Server) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.authenticateRequest(r)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userToDTO(user))
}

// HandlePronouns updates or clears the profile pronouns.
func (s *Server) HandlePronouns(w http.ResponseWriter, r *http.Request) {
	user, err := s.authenticateRequest(r)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	var req pronounsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.UpdatePronouns(r.Context(), user.ID, normalizeOptional(req.Pronouns)); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeUpdatedProfile(w, r, user.ID)
}

// HandleHeadline updates or clears the profile headline.
func (s *Server) HandleHeadline(w http.ResponseWriter, r *http.Request) {
	user, err := s.authenticateRequest(r)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	var req headlineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.UpdateHeadline(r.Context(), user.ID, normalizeOptional(req.Headline)); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeUpdatedProfile(w, r, user.ID)
}

// HandleAvatar replaces the avatar descriptor. The payload is opaque
// structured data; the server only checks it is valid json.
func (s *Server) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	user, err := s.authenticateRequest(r)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	var req avatarRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Avatar) == 0 || !json.Valid(req.Avatar) {
		writeError(w, http.StatusBadRequest, errors.New("avatar_data must be a json object"))
		return
	}
	if err := s.store.UpdateAvatar(r.Context(), user.ID, req.Avatar); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeUpdatedProfile(w, r, user.ID)
}

func (s *Server) writeUpdatedProfile(w http.ResponseWriter, r *http.Request, userID int64) {
	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, errors.New("profile lookup failed"))
		return
	}
	writeJSON(w, http.StatusOK, userToDTO(user))
}

// HandleHealth reports process and database liveness.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "ERROR",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) authenticateRequest(r *http.Request) (*storage.User, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, errUnauthorized
	}
	userID, err := s.auth.Authenticate(token)
	if err != nil {
		return nil, errUnauthorized
	}
	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errUnauthorized
	}
	return user, nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func writeAuthError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, errUnauthorized) {
		status = http.StatusUnauthorized
	}
	http.Error(w, http.StatusText(status), status)
}

func decodeJSON(r *http.Request, out interface{}) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
