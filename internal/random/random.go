package random

import (
	"crypto/rand"
	"github.com/myrjola/casebot/internal/errors"
	"log/slog"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Name returns an n character identifier drawn from lowercase letters and digits. The private in-memory
// databases of parallel tests are named with it.
func Name(n int) (string, error) {
	if n < 0 {
		return "", errors.New("negative length", slog.Int("n", n))
	}
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	// 252 is the largest multiple of len(alphabet) below 256; larger bytes are rejected to keep the draw uniform.
	const limit = 252
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", errors.Wrap(err, "read random")
		}
		for _, b := range buf {
			if b >= limit || len(out) == n {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
		}
	}
	return string(out), nil
}
