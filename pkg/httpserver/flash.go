package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
)

const flashCookieName = "walks_flash"

// NoticeKind classifies flash notice presentation.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeInfo    NoticeKind = "info"
	NoticeWarning NoticeKind = "warning"
	NoticeError   NoticeKind = "error"
)

// Notice is a one-time message shown on the page after a redirect.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Title   string     `json:"title"`
	Message string     `json:"message,omitempty"`
}

// writeFlash stores a notice cookie for the next page render.
func (s *Server) writeFlash(w http.ResponseWriter, notice Notice) {
	normalized, ok := normalizeNotice(notice)
	if !ok {
		return
	}
	payload, err := json.Marshal(normalized)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// readFlash reads and clears the notice cookie.
func (s *Server) readFlash(w http.ResponseWriter, r *http.Request) *Notice {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	notice, ok := decodeNotice(cookie.Value)
	if !ok {
		return nil
	}
	return &notice
}

func decodeNotice(raw string) (Notice, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Notice{}, false
	}
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return Notice{}, false
	}
	var notice Notice
	if err := json.Unmarshal(decoded, &notice); err != nil {
		return Notice{}, false
	}
	return normalizeNotice(notice)
}

func normalizeNotice(notice Notice) (Notice, bool) {
	notice.Title = strings.TrimSpace(notice.Title)
	notice.Message = strings.TrimSpace(notice.Message)
	if notice.Title == "" {
		return Notice{}, false
	}
	notice.Kind = NoticeKind(strings.ToLower(strings.TrimSpace(string(notice.Kind))))
	switch notice.Kind {
	case NoticeSuccess, NoticeInfo, NoticeWarning, NoticeError:
		return notice, true
	default:
		return Notice{}, false
	}
}
