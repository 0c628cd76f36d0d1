package flash

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"idlink/config"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	cfg := &config.Config{}
	cfg.Session.FlashCookieName = "flash"

	return NewStore(cfg)
}

func TestStore_SurvivesRedirect(t *testing.T) {
	e := echo.New()
	store := newTestStore()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/rpx/callback", nil), rec)
	store.Error(c, "first")
	store.Success(c, "second")

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	last := cookies[len(cookies)-1]
	assert.Equal(t, "flash", last.Name)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: last.Name, Value: last.Value})
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)

	assert.Equal(t, []Message{
		{Level: LevelError, Text: "first"},
		{Level: LevelSuccess, Text: "second"},
	}, store.Pop(c))
	assert.Empty(t, store.Pop(c), "messages are shown once")

	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestStore_IgnoresGarbageCookie(t *testing.T) {
	e := echo.New()
	store := newTestStore()

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: "flash", Value: "%%%not-base64"})
	c := e.NewContext(req, httptest.NewRecorder())

	assert.Empty(t, store.Pop(c))
}
