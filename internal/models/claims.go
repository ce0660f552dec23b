package models

import "github.com/golang-jwt/jwt/v5"

// Claims - поля JWT. Идентификатор игрока хранится в стандартном sub.
type Claims struct {
	jwt.RegisteredClaims
}

// PlayerKey возвращает стабильный идентификатор игрока из токена.
func (c *Claims) PlayerKey() string {
	return c.Subject
}
