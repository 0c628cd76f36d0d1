// Package flash queues one-shot user messages across a redirect in a cookie.
package flash

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"idlink/config"

	"github.com/labstack/echo/v4"
)

// Level is the severity of a flash message.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Message is one queued notice.
type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

const pendingKey = "flash.pending"

// Store reads and writes the flash cookie.
type Store struct {
	cookieName string
	secure     bool
}

// NewStore is the constructor for Store.
func NewStore(cfg *config.Config) *Store {
	return &Store{
		cookieName: cfg.Session.FlashCookieName,
		secure:     cfg.Session.Secure,
	}
}

// Success queues a success message for the next page.
func (s *Store) Success(c echo.Context, text string) {
	s.add(c, LevelSuccess, text)
}

// Error queues an error message for the next page.
func (s *Store) Error(c echo.Context, text string) {
	s.add(c, LevelError, text)
}

// Pop returns the queued messages and clears the queue.
func (s *Store) Pop(c echo.Context) []Message {
	messages := s.pending(c)
	c.Set(pendingKey, []Message{})
	if len(messages) > 0 {
		s.writeCookie(c, "", -1)
	}

	return messages
}

func (s *Store) add(c echo.Context, level Level, text string) {
	current := s.pending(c)
	messages := make([]Message, 0, len(current)+1)
	messages = append(messages, current...)
	messages = append(messages, Message{Level: level, Text: text})
	c.Set(pendingKey, messages)

	raw, err := json.Marshal(messages)
	if err != nil {
		return
	}
	s.writeCookie(c, base64.RawURLEncoding.EncodeToString(raw), 0)
}

// pending returns the queue as seen by this request, including messages added during it.
func (s *Store) pending(c echo.Context) []Message {
	if messages, ok := c.Get(pendingKey).([]Message); ok {
		return messages
	}

	cookie, err := c.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}

	var messages []Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil
	}

	return messages
}

func (s *Store) writeCookie(c echo.Context, value string, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     s.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
