// Package crypt implements the SHA-512 variant of crypt(3) used for
// bootloader passwords.
package crypt

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/GehirnInc/crypt/sha512_crypt"
)

const (
	sha512Prefix = "$6$"
	saltLen      = 16
)

const saltChars = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// CryptSHA512 hashes the password with a random salt.
func CryptSHA512(passwd string) (string, error) {
	salt, err := genSalt(saltLen)
	if err != nil {
		return "", err
	}
	return crypt(passwd, sha512Prefix+salt)
}

// PasswordIsCrypted returns true if the password already looks like the
// output of crypt(3).
func PasswordIsCrypted(s string) bool {
	for _, prefix := range []string{"$2b$", "$5$", "$6$"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func genSalt(length int) (string, error) {
	n64 := big.NewInt(int64(len(saltChars)))
	salt := make([]byte, length)
	for i := range salt {
		n, err := rand.Int(rand.Reader, n64)
		if err != nil {
			return "", fmt.Errorf("cannot generate salt: %w", err)
		}
		salt[i] = saltChars[n.Int64()]
	}
	return string(salt), nil
}

func crypt(passwd, setting string) (string, error) {
	if !strings.HasPrefix(setting, sha512Prefix) {
		return "", fmt.Errorf("unsupported crypt setting %q", setting)
	}
	hashed, err := sha512_crypt.New().Generate([]byte(passwd), []byte(setting))
	if err != nil {
		return "", fmt.Errorf("cannot hash password: %w", err)
	}
	return hashed, nil
}
