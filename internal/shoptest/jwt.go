package shoptest

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func (s *Server) signToken(userID uint, typ string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"typ": typ,
		"exp": time.Now().Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.jwtSecret)
}

func (s *Server) signPair(userID uint) (string, string, error) {
	access, err := s.signToken(userID, "access", 15*time.Minute)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.signToken(userID, "refresh", 7*24*time.Hour)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *Server) parseToken(raw string) (jwt.MapClaims, error) {
	t, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signature method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !t.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("cannot parse claims")
	}
	return claims, nil
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Authentication credentials were not provided."})
		}
		claims, err := s.parseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil || claims["typ"] != "access" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Given token not valid for any token type"})
		}
		c.Set("userID", uint(claims["sub"].(float64)))
		return next(c)
	}
}

func userID(c echo.Context) uint {
	id, _ := c.Get("userID").(uint)
	return id
}
