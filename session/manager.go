package session

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const DefaultCookieName = "session"

type Options struct {
	// Secret signs the session cookie.
	Secret     []byte
	Lifetime   time.Duration
	CookieName string
	// Secure marks the cookie HTTPS only.
	Secure bool
}

// Manager ties the session cookie to the Store. The cookie value is an HS256
// JWT whose jti is the session id; nothing else is kept client side.
type Manager struct {
	store  Store
	opts   Options
	logger *logrus.Entry
	now    func() time.Time
}

func NewManager(store Store, opts Options, logger *logrus.Entry) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.Lifetime <= 0 {
		opts.Lifetime = 24 * time.Hour
	}
	return &Manager{
		store:  store,
		opts:   opts,
		logger: logger.WithField("module", "session"),
		now:    time.Now,
	}
}

func (m *Manager) Store() Store { return m.store }

// Load returns the session named by the request cookie. It returns
// ErrNotFound when there is no cookie or no live session behind it.
func (m *Manager) Load(c *gin.Context) (*Session, error) {
	token, err := c.Cookie(m.opts.CookieName)
	if err != nil || token == "" {
		return nil, ErrNotFound
	}

	id, err := m.verify(token)
	if err != nil {
		return nil, err
	}

	return m.store.Load(c.Request.Context(), id)
}

// Start replaces any current session with a fresh one for userID and sets
// the cookie.
func (m *Manager) Start(c *gin.Context, userID uint) (*Session, error) {
	var l = m.logger.WithFields(logrus.Fields{
		"method":       "Start",
		"param_userID": userID,
	})

	if err := m.Clear(c); err != nil {
		l.Warnf("Could not clear previous session: %v", err)
	}

	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(m.opts.Lifetime),
	}
	s.Set(UserIDKey, strconv.FormatUint(uint64(userID), 10))

	if err := m.store.Save(c.Request.Context(), s); err != nil {
		l.Errorf("Saving session failed: %v", err)
		return nil, err
	}

	token, err := m.sign(s)
	if err != nil {
		return nil, err
	}

	m.setCookie(c, token, 0)
	c.Set(contextKey, s)
	l.Debugf("Started session %s", s.ID)
	return s, nil
}

// Clear deletes the current session, if any, and expires the cookie.
func (m *Manager) Clear(c *gin.Context) error {
	c.Set(contextKey, (*Session)(nil))

	token, err := c.Cookie(m.opts.CookieName)
	if err != nil || token == "" {
		return nil
	}
	m.setCookie(c, "", -1)

	id, err := m.verify(token)
	if err != nil {
		return nil
	}
	return m.store.Delete(c.Request.Context(), id)
}

func (m *Manager) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.opts.CookieName, value, maxAge, "/", "", m.opts.Secure, true)
}

func (m *Manager) sign(s *Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        s.ID,
		IssuedAt:  jwt.NewNumericDate(s.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.opts.Secret)
}

func (m *Manager) verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.opts.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}
	if !token.Valid || claims.ID == "" {
		return "", ErrInvalidCookie
	}
	return claims.ID, nil
}
