// Package session keeps server-side login state in Redis and references it
// from a signed cookie.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"echo/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	tokenIssuer  = "echo"
	sessionLocal = "session"
	keyPrefix    = "session:"
)

// ErrNoSession means the request carries no usable session.
var ErrNoSession = errors.New("no session")

// Options controls the cookie and record lifetime.
type Options struct {
	Secret     string
	CookieName string
	Lifetime   time.Duration
	Secure     bool
	HTTPOnly   bool
	SameSite   string
}

// OptionsFromConfig reads the session settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Secret:     cfg.SessionSecret,
		CookieName: cfg.SessionCookieName,
		Lifetime:   cfg.SessionLifetime(),
		Secure:     cfg.SessionCookieSecure,
		HTTPOnly:   cfg.SessionCookieHTTPOnly,
		SameSite:   cfg.SessionCookieSameSite,
	}
}

// Session is one server-side login record.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}

// Store creates, resolves and destroys sessions.
type Store struct {
	rdb  *redis.Client
	opts Options
	now  func() time.Time
}

func NewStore(rdb *redis.Client, opts Options) *Store {
	if opts.CookieName == "" {
		opts.CookieName = "echo_session"
	}
	if opts.Lifetime <= 0 {
		opts.Lifetime = 7 * 24 * time.Hour
	}
	if opts.SameSite == "" {
		opts.SameSite = fiber.CookieSameSiteLaxMode
	}
	return &Store{rdb: rdb, opts: opts, now: time.Now}
}

func recordKey(id string) string {
	return keyPrefix + id
}

// Create writes a new record for userID and returns it with its signed token.
func (s *Store) Create(ctx context.Context, userID string) (*Session, string, error) {
	if userID == "" {
		return nil, "", errors.New("session: empty user id")
	}
	sess := &Session{ID: uuid.NewString(), UserID: userID, CreatedAt: s.now().UTC()}

	key := recordKey(sess.ID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "user_id", sess.UserID, "created_at", sess.CreatedAt.Unix())
		pipe.Expire(ctx, key, s.opts.Lifetime)
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("store session: %w", err)
	}

	token, err := s.sign(sess)
	if err != nil {
		s.rdb.Del(ctx, key)
		return nil, "", err
	}
	return sess, token, nil
}

func (s *Store) sign(sess *Session) (string, error) {
	if s.opts.Secret == "" {
		return "", errors.New("session secret not configured")
	}
	claims := jwt.RegisteredClaims{
		Subject:   sess.UserID,
		ID:        sess.ID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(sess.CreatedAt.Add(s.opts.Lifetime)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.opts.Secret))
}

// Lookup verifies token and returns the live record it names. A bad
// signature, an expired token, a missing record or a user mismatch all
// yield ErrNoSession.
func (s *Store) Lookup(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.opts.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, ErrNoSession
	}

	fields, err := s.rdb.HGetAll(ctx, recordKey(claims.ID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(fields) == 0 || fields["user_id"] != claims.Subject {
		return nil, ErrNoSession
	}

	sess := &Session{ID: claims.ID, UserID: claims.Subject}
	if claims.IssuedAt != nil {
		sess.CreatedAt = claims.IssuedAt.Time
	}
	return sess, nil
}

// Destroy removes the record and any pending flashes for it.
func (s *Store) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.rdb.Del(ctx, recordKey(id), flashKey(id)).Err()
}

// Start creates a session for userID and sets the cookie on the response.
func (s *Store) Start(c *fiber.Ctx, userID string) (*Session, error) {
	sess, token, err := s.Create(c.UserContext(), userID)
	if err != nil {
		return nil, err
	}
	c.Cookie(&fiber.Cookie{
		Name:     s.opts.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.CreatedAt.Add(s.opts.Lifetime),
		HTTPOnly: s.opts.HTTPOnly,
		Secure:   s.opts.Secure,
		SameSite: s.opts.SameSite,
	})
	c.Locals(sessionLocal, sess)
	return sess, nil
}

// FromRequest resolves the session cookie once per request.
func (s *Store) FromRequest(c *fiber.Ctx) (*Session, error) {
	switch v := c.Locals(sessionLocal).(type) {
	case *Session:
		return v, nil
	case error:
		return nil, v
	}

	sess, err := s.Lookup(c.UserContext(), c.Cookies(s.opts.CookieName))
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			c.Locals(sessionLocal, ErrNoSession)
		}
		return nil, err
	}
	c.Locals(sessionLocal, sess)
	return sess, nil
}

// End destroys the request's session, if any, and clears the cookie.
func (s *Store) End(c *fiber.Ctx) error {
	sess, err := s.FromRequest(c)
	s.ClearCookie(c)
	c.Locals(sessionLocal, ErrNoSession)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil
		}
		return err
	}
	return s.Destroy(c.UserContext(), sess.ID)
}

// ClearCookie expires the session cookie.
func (s *Store) ClearCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     s.opts.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: s.opts.HTTPOnly,
		Secure:   s.opts.Secure,
		SameSite: s.opts.SameSite,
	})
}
