package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"
)

// Verifier checks Mailgun webhook signatures: hex HMAC-SHA256 of timestamp+token under
// the signing key, a bounded clock skew, and one use per token.
type Verifier struct {
	key    []byte
	window time.Duration // 0 disables the skew check
	now    func() time.Time

	mu     sync.Mutex
	nonces map[string]time.Time
}

// nonceTTL bounds how long used tokens are remembered when no skew window applies.
const nonceTTL = 10 * time.Minute

func NewVerifier(signingKey string, window time.Duration) *Verifier {
	return &Verifier{
		key:    []byte(signingKey),
		window: window,
		now:    time.Now,
		nonces: make(map[string]time.Time),
	}
}

// Sign returns the signature Mailgun would send for timestamp and token.
func Sign(signingKey, timestamp, token string) string {
	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(timestamp + token))
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *Verifier) Verify(timestamp, token, signature string) bool {
	if len(v.key) == 0 || timestamp == "" || token == "" || signature == "" {
		return false
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	now := v.now()
	if v.window > 0 {
		skew := now.Sub(time.Unix(ts, 0))
		if skew > v.window || skew < -v.window {
			return false
		}
	}

	if !hmac.Equal([]byte(Sign(string(v.key), timestamp, token)), []byte(signature)) {
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.prune(now)
	if _, seen := v.nonces[token]; seen {
		return false
	}
	v.nonces[token] = now
	return true
}

func (v *Verifier) prune(now time.Time) {
	ttl := nonceTTL
	if 2*v.window > ttl {
		ttl = 2 * v.window
	}
	cutoff := now.Add(-ttl)
	for token, seen := range v.nonces {
		if seen.Before(cutoff) {
			delete(v.nonces, token)
		}
	}
}
