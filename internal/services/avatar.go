package services

import (
	"math/rand/v2"
	"strings"
)

const (
	avatarBaseURL = "https://api.dicebear.com/7.x/personas/svg?seed="
	seedAlphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
	seedLength    = 13
)

// RandomAvatar returns a generated avatar URL with a random seed. The seed
// only varies the picture; it does not need to be unpredictable.
func RandomAvatar() string {
	var b strings.Builder
	b.Grow(len(avatarBaseURL) + seedLength)
	b.WriteString(avatarBaseURL)
	for range seedLength {
		b.WriteByte(seedAlphabet[rand.IntN(len(seedAlphabet))])
	}
	return b.String()
}
