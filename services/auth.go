package services

import (
	"errors"
	"time"

	"article-gate/config"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ErrBadCredentials wird einheitlich für jede fehlgeschlagene Prüfung
// zurückgegeben, damit nicht erkennbar ist, welcher Teil falsch war.
var ErrBadCredentials = errors.New("authentication failed")

// AuthGate prüft Admin-Anmeldedaten und stellt signierte, zeitlich
// begrenzte Session-Tokens aus. Die Credential-Tabelle hat derzeit genau
// einen Eintrag; weitere Konten wären eine reine Datenänderung.
type AuthGate struct {
	credentials map[string]string // username -> Klartext-Passwort
	secret      []byte
	ttl         time.Duration
	log         *zap.Logger
}

func NewAuthGate(cfg *config.Config, log *zap.Logger) *AuthGate {
	return &AuthGate{
		credentials: map[string]string{cfg.AdminUser: cfg.AdminPassword},
		secret:      []byte(cfg.JWTSecret),
		ttl:         time.Duration(cfg.TokenTTLMinutes) * time.Minute,
		log:         log,
	}
}

// TTL gibt die konfigurierte Token-Lebensdauer zurück.
func (g *AuthGate) TTL() time.Duration {
	return g.ttl
}

// Login vergleicht die Anmeldedaten mit der Credential-Tabelle und stellt
// bei Erfolg ein HS256-signiertes Token mit Ablaufzeit aus.
func (g *AuthGate) Login(username, password string) (string, error) {
	stored, ok := g.credentials[username]
	if !ok || stored != password {
		return "", ErrBadCredentials
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", err
	}
	g.log.Info("Admin session issued", zap.String("subject", username))
	return signed, nil
}

// Verify prüft Signatur und Ablaufzeit eines Tokens und gibt das Subject
// zurück. Es gibt keine Revocation-Liste; Gültigkeit ist rein zustandslos.
func (g *AuthGate) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadCredentials
		}
		return g.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrBadCredentials
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return "", ErrBadCredentials
	}
	return claims.Subject, nil
}
