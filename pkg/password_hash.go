package pkg

import "golang.org/x/crypto/bcrypt"

// HashPassword bcrypt-hashes the admin password for storage; cost 14 keeps
// login attempts slow enough that the rate limiter is not the only defense.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return BytesToString(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
