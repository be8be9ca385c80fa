package middleware

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/smartdoc/internal/core"
	"github.com/markdave123-py/smartdoc/internal/core/session"
	"github.com/markdave123-py/smartdoc/internal/models"
)

type ctxKey int

// touchAfter bounds how stale UpdatedAt may get before a read-only request
// writes the session back to keep it from expiring.
const touchAfter = time.Minute

const sessionKey ctxKey = iota

// SessionFrom returns the session attached by Sessions.
func SessionFrom(ctx context.Context) (models.Session, bool) {
	s, ok := ctx.Value(sessionKey).(models.Session)
	return s, ok
}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s models.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// Sessions loads the session named by the cookie, or starts a new one, and
// holds the session lock until the handler returns. The cookie is re-issued on
// every request so it expires only after the session has been idle.
type Sessions struct {
	store      core.SessionStore
	tokens     *session.Tokens
	locker     *session.Locker
	newSession func() models.Session
	logger     *zap.Logger
}

func NewSessions(store core.SessionStore, tokens *session.Tokens, locker *session.Locker, newSession func() models.Session, logger *zap.Logger) *Sessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sessions{store: store, tokens: tokens, locker: locker, newSession: newSession, logger: logger}
}

func (m *Sessions) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var (
			sess   *models.Session
			unlock = func() {}
		)
		if c, err := r.Cookie(session.CookieName); err == nil {
			if id, err := m.tokens.Parse(c.Value); err == nil {
				unlock = m.locker.Lock(id)
				sess, err = m.store.Get(ctx, id)
				if err != nil {
					unlock()
					m.logger.Error("load session", zap.String("session_id", id), zap.Error(err))
					http.Error(w, "session unavailable", http.StatusInternalServerError)
					return
				}
				if sess != nil {
					m.touch(r.Context(), sess)
				}
			}
		}

		if sess == nil {
			unlock()
			fresh := m.newSession()
			unlock = m.locker.Lock(fresh.ID)
			if err := m.store.Save(ctx, &fresh); err != nil {
				unlock()
				m.logger.Error("create session", zap.Error(err))
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
			m.logger.Debug("session started", zap.String("session_id", fresh.ID))
			sess = &fresh
		}
		defer unlock()

		tok, err := m.tokens.Issue(sess.ID)
		if err != nil {
			m.logger.Error("issue session token", zap.Error(err))
			http.Error(w, "session unavailable", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     session.CookieName,
			Value:    tok,
			Path:     "/",
			MaxAge:   int(m.tokens.TTL().Seconds()),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})

		next.ServeHTTP(w, r.WithContext(WithSession(ctx, *sess)))
	})
}

// touch refreshes UpdatedAt so the janitor measures idleness from the last
// request, not the last change.
func (m *Sessions) touch(ctx context.Context, sess *models.Session) {
	now := time.Now().UTC()
	if now.Sub(sess.UpdatedAt) < touchAfter {
		return
	}
	prev := sess.UpdatedAt
	sess.UpdatedAt = now
	if err := m.store.Save(ctx, sess); err != nil {
		sess.UpdatedAt = prev
		m.logger.Warn("refresh session", zap.String("session_id", sess.ID), zap.Error(err))
	}
}
