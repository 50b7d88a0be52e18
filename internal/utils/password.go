package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt 只使用前 72 字节
const maxPasswordBytes = 72

// ErrPasswordTooLong 密码超过 bcrypt 可处理的长度
var ErrPasswordTooLong = errors.New("密码长度不能超过72字节")

// HashPassword 哈希密码
func HashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword 验证密码
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
