package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/mwhite/petdose/internal/config"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidPassword = errors.New("invalid password")

// AuthService checks the single shared household password and manages the
// session cookie. There are no per-user accounts; the session carries the
// caregiver's display name for the confirmation ledger.
type AuthService struct {
	passwordHash []byte
	secureCookie *securecookie.SecureCookie
}

type SessionData struct {
	CaregiverName string    `json:"caregiver_name"`
	LoggedInAt    time.Time `json:"logged_in_at"`
}

func NewAuthService(cfg config.Config) (*AuthService, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AppPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing app password: %w", err)
	}

	return &AuthService{
		passwordHash: hash,
		secureCookie: securecookie.New([]byte(cfg.SessionSecret), nil),
	}, nil
}

func (service *AuthService) CheckPassword(password string) error {
	if err := bcrypt.CompareHashAndPassword(service.passwordHash, []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}

func (service *AuthService) SetSession(w http.ResponseWriter, caregiverName string) error {
	data := SessionData{CaregiverName: caregiverName, LoggedInAt: time.Now()}
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	value, err := service.secureCookie.Encode("session", string(encoded))
	if err != nil {
		return fmt.Errorf("encoding session cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400 * 30,
	})
	return nil
}

func (service *AuthService) GetSession(r *http.Request) (SessionData, error) {
	cookie, err := r.Cookie("session")
	if err != nil {
		return SessionData{}, fmt.Errorf("no session cookie: %w", err)
	}

	var decoded string
	if err := service.secureCookie.Decode("session", cookie.Value, &decoded); err != nil {
		return SessionData{}, fmt.Errorf("decoding session cookie: %w", err)
	}

	var session SessionData
	if err := json.Unmarshal([]byte(decoded), &session); err != nil {
		return SessionData{}, fmt.Errorf("unmarshaling session: %w", err)
	}
	return session, nil
}

func (service *AuthService) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
