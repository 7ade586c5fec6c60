package server

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"echo/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.NewValidationError("bad"), fiber.StatusBadRequest},
		{models.NewInvalidImageError(errors.New("eof")), fiber.StatusBadRequest},
		{models.NewUnauthorizedError("who"), fiber.StatusUnauthorized},
		{models.NewDuplicateCredentialError("email", nil), fiber.StatusConflict},
		{&models.AppError{Code: models.CodeNotFound, Message: "gone"}, fiber.StatusNotFound},
		{models.NewPayloadTooLargeError("big"), fiber.StatusRequestEntityTooLarge},
		{models.NewUnsupportedFormatError("gif"), fiber.StatusUnsupportedMediaType},
		{models.NewStorageError(errors.New("disk")), fiber.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", models.NewValidationError("bad")), fiber.StatusBadRequest},
		{errors.New("plain"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, mapServiceError(tt.err))
		})
	}
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "bad", userMessage(models.NewValidationError("bad"), "fallback"))
	assert.Equal(t, "fallback", userMessage(models.NewStorageError(errors.New("disk")), "fallback"))
	assert.Equal(t, "fallback", userMessage(errors.New("plain"), "fallback"))
}

func TestIsSafeURL(t *testing.T) {
	app := fiber.New()
	results := map[string]bool{}
	app.Get("/", func(c *fiber.Ctx) error {
		for _, target := range []string{
			"",
			"/dashboard",
			"/profile/alice?tab=posts",
			"dashboard",
			"//evil.example.org/x",
			"/\\evil.example.org",
			"/ok\r\nSet-Cookie: x=1",
			"http://example.com/ok",
			"HTTPS://EXAMPLE.COM/ok",
			"https://example.com.evil.org/",
			"ftp://example.com/file",
			"javascript:alert(1)",
		} {
			results[target] = isSafeURL(c, target)
		}
		return nil
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "http://example.com/", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, map[string]bool{
		"":                               false,
		"/dashboard":                     true,
		"/profile/alice?tab=posts":       true,
		"dashboard":                      false,
		"//evil.example.org/x":           false,
		"/\\evil.example.org":            false,
		"/ok\r\nSet-Cookie: x=1":         false,
		"http://example.com/ok":          true,
		"HTTPS://EXAMPLE.COM/ok":         true,
		"https://example.com.evil.org/":  false,
		"ftp://example.com/file":         false,
		"javascript:alert(1)":            false,
	}, results)
}
