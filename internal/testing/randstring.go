package testing

import "math/rand/v2"

const (
	letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits  = "0123456789"
)

// RandString generates random string with 10 symbols length from lower- and uppercase alphabet.
// Tests use it for usernames that must not collide in a shared database.
func RandString() string {
	return randFrom(letters, 10)
}

// RandPhone generates a random North American phone number in E.164 form
func RandPhone() string {
	return "+1" + randFrom(digits, 10)
}

func randFrom(set string, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = set[rand.IntN(len(set))]
	}
	return string(b)
}
