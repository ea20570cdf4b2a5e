package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mwhite/petdose/internal/services"
)

type contextKey string

const CaregiverContextKey contextKey = "caregiver"

func RequireAuth(authService *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := authService.GetSession(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}

			ctx := context.WithValue(r.Context(), CaregiverContextKey, session.CaregiverName)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetCaregiver(ctx context.Context) string {
	caregiver, _ := ctx.Value(CaregiverContextKey).(string)
	return caregiver
}
