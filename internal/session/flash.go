package session

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Flash categories.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

const (
	flashCookie   = "echo_flash"
	flashPrefix   = "flash:"
	anonFlashTTL  = 10 * time.Minute
	maxFlashQueue = 20
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

func flashKey(id string) string {
	return flashPrefix + id
}

// flashTarget picks the signed-in session queue, or an anonymous one keyed
// by a cookie. create controls whether a missing anonymous cookie is issued.
func (s *Store) flashTarget(c *fiber.Ctx, create bool) (string, time.Duration) {
	if sess, err := s.FromRequest(c); err == nil {
		return flashKey(sess.ID), s.opts.Lifetime
	}

	id := c.Cookies(flashCookie)
	if _, err := uuid.Parse(id); err != nil {
		if !create {
			return "", 0
		}
		id = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     flashCookie,
			Value:    id,
			Path:     "/",
			HTTPOnly: true,
			Secure:   s.opts.Secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
		c.Request().Header.SetCookie(flashCookie, id)
	}
	return flashKey("anon:" + id), anonFlashTTL
}

// AddFlash queues a message for the next page render.
func (s *Store) AddFlash(c *fiber.Ctx, category, message string) error {
	key, ttl := s.flashTarget(c, true)
	payload, err := json.Marshal(Flash{Category: category, Message: message})
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		pipe.LTrim(ctx, key, -maxFlashQueue, -1)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

// PopFlashes returns and clears the queued messages.
func (s *Store) PopFlashes(c *fiber.Ctx) ([]Flash, error) {
	key, _ := s.flashTarget(c, false)
	if key == "" {
		return nil, nil
	}

	ctx := c.UserContext()
	var items *redis.StringSliceCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		items = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	flashes := make([]Flash, 0, len(items.Val()))
	for _, raw := range items.Val() {
		var f Flash
		if json.Unmarshal([]byte(raw), &f) == nil {
			flashes = append(flashes, f)
		}
	}
	return flashes, nil
}
