package server

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"echo/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestImage(t *testing.T, format string, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 8 {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		require.NoError(t, png.Encode(&buf, img))
	case "gif":
		require.NoError(t, gif.Encode(&buf, img, nil))
	default:
		t.Fatalf("unknown format %q", format)
	}
	return buf.Bytes()
}

func TestProfileAPI(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")

	resp := env.do(httptest.NewRequest(http.MethodGet, "/api/profile/unknown", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Profile not found"}`, bodyString(t, resp))

	resp = env.do(jsonRequest(http.MethodPut, "/api/profile", map[string]string{
		"display_name": "  Alice A.  ",
		"bio":          "Writes things.",
	}), alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true}`, bodyString(t, resp))

	var view models.ProfileView
	resp = env.do(httptest.NewRequest(http.MethodGet, "/api/profile/alice", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &view)
	require.NotNil(t, view.DisplayName)
	assert.Equal(t, "Alice A.", *view.DisplayName)
	require.NotNil(t, view.Bio)
	assert.Equal(t, "Writes things.", *view.Bio)
	assert.Nil(t, view.ProfileImageURL)

	resp = env.do(jsonRequest(http.MethodPost, "/api/profile", map[string]string{
		"display_name": strings.Repeat("x", 256),
	}), alice)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var bad models.ErrorResponse
	decodeJSON(t, resp, &bad)
	assert.Equal(t, "display_name", bad.Field)
	assert.Equal(t, map[string]string{"display_name": "must be at most 255 characters long"}, bad.Details)

	resp = env.do(jsonRequest(http.MethodGet, "/api/profile", nil), alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &view)
	assert.Equal(t, "alice", view.Username)
	assert.Equal(t, "Alice A.", *view.DisplayName)

	resp = env.do(jsonRequest(http.MethodPut, "/api/profile", map[string]string{"bio": "x"}))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProfilePages(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	bob := env.register("bob")

	resp := env.do(httptest.NewRequest(http.MethodGet, "/profile", nil), alice)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/profile/alice", resp.Header.Get("Location"))

	resp = env.do(formRequest(http.MethodPost, "/profile", url.Values{"display_name": {"Alice Liddell"}}), alice)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp = env.do(httptest.NewRequest(http.MethodGet, "/profile/alice", nil), alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := bodyString(t, resp)
	assert.Contains(t, page, "Profile updated.")
	assert.Contains(t, page, "Alice Liddell")
	assert.Contains(t, page, `action="/profile/picture"`)

	resp = env.do(httptest.NewRequest(http.MethodGet, "/profile/alice", nil), bob)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, bodyString(t, resp), `action="/profile/picture"`)

	resp = env.do(httptest.NewRequest(http.MethodGet, "/profile/ghost", nil), bob)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
	resp = env.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil), bob)
	assert.Contains(t, bodyString(t, resp), "Profile not found.")
}

func TestDeleteProfile(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")

	resp := env.do(jsonRequest(http.MethodPost, "/api/posts", map[string]string{"content": "still here"}), alice)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(jsonRequest(http.MethodDelete, "/api/profile", nil), alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true}`, bodyString(t, resp))

	resp = env.do(jsonRequest(http.MethodGet, "/api/profile", nil), alice)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(httptest.NewRequest(http.MethodGet, "/api/profile/alice", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(formRequest(http.MethodPost, "/login", url.Values{
		"username": {"alice"},
		"password": {testPassword},
	}))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, bodyString(t, resp), "This account is deactivated.")

	// the username stays reserved
	resp = env.do(formRequest(http.MethodPost, "/register", url.Values{
		"username": {"alice"},
		"email":    {"new@example.com"},
		"password": {testPassword},
	}))
	assert.Contains(t, bodyString(t, resp), "Username is already taken.")

	// posts by deactivated authors stay in the feed
	resp = env.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Contains(t, bodyString(t, resp), "still here")
}

func TestDeleteProfileForm(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")

	resp := env.do(httptest.NewRequest(http.MethodPost, "/profile/delete", nil), alice)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
	flash := responseCookie(resp, "echo_flash")
	require.NotNil(t, flash)

	resp = env.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil), flash)
	assert.Contains(t, bodyString(t, resp), "Your account has been deactivated.")

	var user models.User
	require.NoError(t, env.db.Where("username = ?", "alice").First(&user).Error)
	assert.Equal(t, models.StatusDeleted, user.Status)
}

func TestProfilePictureAPI(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")

	var user models.User
	require.NoError(t, env.db.Where("username = ?", "alice").First(&user).Error)

	req := multipartRequest(t, "/api/profile/picture", "profile_picture", "me.png", encodeTestImage(t, "png", 1024, 1024))
	resp := env.do(req, alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Success bool   `json:"success"`
		URL     string `json:"profile_image_url"`
	}
	decodeJSON(t, resp, &body)
	assert.True(t, body.Success)
	assert.Equal(t, "/static/uploads/profile/"+user.ID+".webp", body.URL)

	stored, err := os.ReadFile(filepath.Join(env.cfg.StaticDir, "uploads", "profile", user.ID+".webp"))
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(stored[:4]))

	resp = env.do(httptest.NewRequest(http.MethodGet, body.URL, nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var view models.ProfileView
	resp = env.do(httptest.NewRequest(http.MethodGet, "/api/profile/alice", nil))
	decodeJSON(t, resp, &view)
	require.NotNil(t, view.ProfileImageURL)
	assert.Equal(t, body.URL, *view.ProfileImageURL)
}

func TestProfilePictureAPIRejects(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")

	tests := []struct {
		name     string
		field    string
		content  []byte
		status   int
		contains string
	}{
		{"gif", "profile_picture", encodeTestImage(t, "gif", 32, 32), http.StatusUnsupportedMediaType, "Only JPG, PNG, and WEBP images are allowed."},
		{"garbage", "profile_picture", []byte("definitely not an image"), http.StatusBadRequest, ""},
		{"missing field", "", nil, http.StatusBadRequest, "Choose an image to upload."},
		{"wrong field", "avatar", encodeTestImage(t, "png", 16, 16), http.StatusBadRequest, "Choose an image to upload."},
		{"too large", "profile_picture", bytes.Repeat([]byte{0xff}, int(env.cfg.ProfileImageMaxBytes)+1), http.StatusRequestEntityTooLarge, "Maximum size is 5 MB."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := multipartRequest(t, "/api/profile/picture", tt.field, "upload.bin", tt.content)
			resp := env.do(req, alice)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := bodyString(t, resp)
			if tt.contains != "" {
				assert.Contains(t, body, tt.contains)
			}
		})
	}

	var media int64
	require.NoError(t, env.db.Model(&models.Media{}).Count(&media).Error)
	assert.Zero(t, media)
	_, err := os.Stat(filepath.Join(env.cfg.StaticDir, "uploads", "profile"))
	assert.True(t, os.IsNotExist(err))
}

func TestProfilePictureForm(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")

	req := multipartRequest(t, "/profile/picture", "profile_picture", "me.png", encodeTestImage(t, "png", 600, 300))
	resp := env.do(req, alice)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/profile", resp.Header.Get("Location"))

	resp = env.do(httptest.NewRequest(http.MethodGet, "/profile/alice", nil), alice)
	page := bodyString(t, resp)
	assert.Contains(t, page, "Profile picture updated.")
	assert.Contains(t, page, "/static/uploads/profile/")
}
