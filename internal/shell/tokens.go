package shell

import (
	"crypto/rand"
	"math/big"
)

// minTokenDigits is the length of every framing token: a random decimal
// number drawn uniformly from [0, 10^minTokenDigits) and zero-padded to
// this many digits.
const minTokenDigits = 10

var tokenCeiling = func() *big.Int {
	n := big.NewInt(10)
	return n.Exp(n, big.NewInt(minTokenDigits), nil)
}()

// newToken returns a fresh random decimal token, regenerated for every
// command so delayed output from a previous command can never be mistaken
// for the current one's framing (spec.md §4.B invariants).
func newToken() string {
	n, err := rand.Int(rand.Reader, tokenCeiling)
	if err != nil {
		// crypto/rand failing is effectively unrecoverable on this host;
		// panic rather than silently hand back a guessable token.
		panic("shell: crypto/rand unavailable: " + err.Error())
	}
	// Zero-pad so the token always has minTokenDigits digits: a short
	// token is still a valid framing sentinel but padding keeps the
	// probability of accidental occurrence in payload uniform.
	s := n.String()
	for len(s) < minTokenDigits {
		s = "0" + s
	}
	return s
}
