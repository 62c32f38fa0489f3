package api

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

const sharePath = "/share/"

// shareSigner issues expiring HMAC-signed links to single assets, so a
// scanned QR code works without the session cookie.
type shareSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func newShareSigner(secret string, ttl time.Duration) *shareSigner {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &shareSigner{key: key, ttl: ttl, now: time.Now}
}

func (s *shareSigner) signature(id string, exp int64) []byte {
	mac := hmac.New(sha256.New, s.key)
	_, _ = mac.Write([]byte(id + "." + strconv.FormatInt(exp, 10)))
	return mac.Sum(nil)
}

// Link returns the path and query of a share link for id.
func (s *shareSigner) Link(id string) string {
	exp := s.now().Add(s.ttl).Unix()
	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", base64.RawURLEncoding.EncodeToString(s.signature(id, exp)))
	return sharePath + url.PathEscape(id) + "?" + q.Encode()
}

// Verify checks the signature and expiry of a share link.
func (s *shareSigner) Verify(id, exp, sig string) bool {
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil || s.now().Unix() > expUnix {
		return false
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(got, s.signature(id, expUnix))
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()
	if !s.share.Verify(id, q.Get("exp"), q.Get("sig")) {
		writeError(w, http.StatusForbidden, "invalid or expired link")
		return
	}
	a, ok := s.studio.Store().Get(id)
	if !ok {
		writeNotFound(w)
		return
	}
	serveAsset(w, r, a)
}
