// Package shoptest runs an in-process storefront imitating the real
// backend's REST surface, so client tests exercise the full contract
// (JWT auth, DRF-style error bodies, decimal prices as JSON strings)
// without any external service.
package shoptest

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	Email        string `json:"email"`
	PasswordHash string `gorm:"not null"                 json:"-"`
}

type Item struct {
	ID       uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	Name     string          `gorm:"not null"                 json:"name"`
	Category string          `gorm:"not null"                 json:"category"`
	Price    decimal.Decimal `gorm:"type:text;not null"       json:"price"`
	ImageURL string          `json:"image_url,omitempty"`
}

type CartItem struct {
	ID       uint      `gorm:"primaryKey;autoIncrement"    json:"id"`
	UserID   uint      `gorm:"index;not null"              json:"-"`
	ItemID   uint      `gorm:"not null"                    json:"-"`
	Item     Item      `json:"item"`
	Quantity uint      `gorm:"default:1;check:quantity>0"  json:"quantity"`
	AddedAt  time.Time `gorm:"autoCreateTime"              json:"added_at"`
}

type Server struct {
	T  *testing.T
	E  *echo.Echo
	DB *gorm.DB

	srv       *httptest.Server
	jwtSecret []byte

	hits         atomic.Int64
	failCartGets atomic.Int32
}

func New(t *testing.T) *Server {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&User{}, &Item{}, &CartItem{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	s := &Server{
		T:         t,
		E:         echo.New(),
		DB:        db,
		jwtSecret: []byte("shoptest-secret"),
	}
	s.E.HideBanner = true
	s.E.Use(s.countHits)
	s.routes()

	s.srv = httptest.NewServer(s.E)
	t.Cleanup(s.srv.Close)
	return s
}

// URL is the base address clients should point at.
func (s *Server) URL() string { return s.srv.URL }

// Hits reports how many HTTP requests the server has seen. Lets tests
// assert that short-circuited operations issued zero network calls.
func (s *Server) Hits() int64 { return s.hits.Load() }

// FailNextCartReads makes the next n GET /api/cart/ requests answer 500.
func (s *Server) FailNextCartReads(n int) { s.failCartGets.Store(int32(n)) }

// SeedUser registers a user directly in the database.
func (s *Server) SeedUser(username, password string) User {
	s.T.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		s.T.Fatalf("failed to hash password: %v", err)
	}
	u := User{Username: username, PasswordHash: string(hash)}
	if err := s.DB.Create(&u).Error; err != nil {
		s.T.Fatalf("failed to seed user: %v", err)
	}
	return u
}

// SeedCartLine puts a line straight into a user's server-side cart,
// bypassing the API. Lets tests model a returning user whose cart was
// filled in an earlier session.
func (s *Server) SeedCartLine(user User, item Item, quantity uint) CartItem {
	s.T.Helper()
	line := CartItem{UserID: user.ID, ItemID: item.ID, Quantity: quantity}
	if err := s.DB.Create(&line).Error; err != nil {
		s.T.Fatalf("failed to seed cart line: %v", err)
	}
	return line
}

// SeedItem inserts a catalog item; price is a decimal string like "99.90".
func (s *Server) SeedItem(name, category, price string) Item {
	s.T.Helper()
	p, err := decimal.NewFromString(price)
	if err != nil {
		s.T.Fatalf("bad price %q: %v", price, err)
	}
	it := Item{Name: name, Category: category, Price: p}
	if err := s.DB.Create(&it).Error; err != nil {
		s.T.Fatalf("failed to seed item: %v", err)
	}
	return it
}

func (s *Server) countHits(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.hits.Add(1)
		return next(c)
	}
}

func (s *Server) routes() {
	api := s.E.Group("/api")
	api.POST("/register/", s.register)
	api.POST("/token/", s.token)
	api.POST("/token/refresh/", s.tokenRefresh)
	api.GET("/items/", s.listItems)

	cart := api.Group("/cart", s.requireAuth)
	cart.GET("/", s.getCart)
	cart.POST("/", s.addToCart)
	cart.PUT("/:item_id/", s.updateCartLine)
	cart.DELETE("/:item_id/", s.removeCartLine)
}

func (s *Server) register(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "malformed body"})
	}
	if req.Username == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"username": []string{"This field is required."}})
	}
	if req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"password": []string{"This field is required."}})
	}

	var existing User
	if err := s.DB.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"username": []string{"A user with that username already exists."}})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"detail": "hash failure"})
	}
	u := User{Username: req.Username, Email: req.Email, PasswordHash: string(hash)}
	if err := s.DB.Create(&u).Error; err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": err.Error()})
	}
	return c.JSON(http.StatusCreated, u)
}

func (s *Server) token(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "malformed body"})
	}

	var u User
	if err := s.DB.Where("username = ?", req.Username).First(&u).Error; err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "No active account found with the given credentials"})
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "No active account found with the given credentials"})
	}

	access, refresh, err := s.signPair(u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"detail": "token failure"})
	}
	return c.JSON(http.StatusOK, echo.Map{"access": access, "refresh": refresh})
}

func (s *Server) tokenRefresh(c echo.Context) error {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "malformed body"})
	}

	claims, err := s.parseToken(req.Refresh)
	if err != nil || claims["typ"] != "refresh" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Token is invalid or expired"})
	}
	userID := uint(claims["sub"].(float64))
	access, err := s.signToken(userID, "access", 15*time.Minute)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"detail": "token failure"})
	}
	return c.JSON(http.StatusOK, echo.Map{"access": access})
}

func (s *Server) listItems(c echo.Context) error {
	q := s.DB.Model(&Item{}).Order("id")
	if text := c.QueryParam("q"); text != "" {
		pat := "%" + strings.ToLower(text) + "%"
		q = q.Where("lower(name) LIKE ? OR lower(category) LIKE ?", pat, pat)
	}
	if cat := c.QueryParam("category"); cat != "" {
		q = q.Where("lower(category) = ?", strings.ToLower(cat))
	}
	if raw := c.QueryParam("price_min"); raw != "" {
		if min, err := strconv.ParseFloat(raw, 64); err == nil {
			q = q.Where("CAST(price AS REAL) >= ?", min)
		}
	}
	if raw := c.QueryParam("price_max"); raw != "" {
		if max, err := strconv.ParseFloat(raw, 64); err == nil {
			q = q.Where("CAST(price AS REAL) <= ?", max)
		}
	}

	var items []Item
	if err := q.Find(&items).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"detail": err.Error()})
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) getCart(c echo.Context) error {
	if s.failCartGets.Load() > 0 {
		s.failCartGets.Add(-1)
		return c.JSON(http.StatusInternalServerError, echo.Map{"detail": "injected failure"})
	}

	var lines []CartItem
	if err := s.DB.Preload("Item").Where("user_id = ?", userID(c)).Order("id").Find(&lines).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"detail": err.Error()})
	}
	return c.JSON(http.StatusOK, lines)
}

func (s *Server) addToCart(c echo.Context) error {
	var req struct {
		ItemID   uint `json:"item_id"`
		Quantity uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "malformed body"})
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	var item Item
	if err := s.DB.First(&item, req.ItemID).Error; err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"item_id": []string{"Invalid pk - object does not exist."}})
	}

	// Same line already in the cart: increment, still 201.
	var line CartItem
	err := s.DB.Where("user_id = ? AND item_id = ?", userID(c), req.ItemID).First(&line).Error
	if err == nil {
		line.Quantity += req.Quantity
		s.DB.Save(&line)
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		line = CartItem{UserID: userID(c), ItemID: req.ItemID, Quantity: req.Quantity}
		if err := s.DB.Create(&line).Error; err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"detail": err.Error()})
		}
	} else {
		return c.JSON(http.StatusInternalServerError, echo.Map{"detail": err.Error()})
	}

	line.Item = item
	return c.JSON(http.StatusCreated, line)
}

func (s *Server) updateCartLine(c echo.Context) error {
	itemID, err := strconv.Atoi(c.Param("item_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "invalid item id"})
	}
	var req struct {
		Quantity uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "malformed body"})
	}
	if req.Quantity < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"quantity": []string{"Ensure this value is greater than or equal to 1."}})
	}

	var line CartItem
	if err := s.DB.Where("user_id = ? AND item_id = ?", userID(c), itemID).First(&line).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Item not in cart"})
	}
	line.Quantity = req.Quantity
	if err := s.DB.Save(&line).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"detail": err.Error()})
	}
	return c.JSON(http.StatusOK, line)
}

func (s *Server) removeCartLine(c echo.Context) error {
	itemID, err := strconv.Atoi(c.Param("item_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "invalid item id"})
	}

	var line CartItem
	if err := s.DB.Where("user_id = ? AND item_id = ?", userID(c), itemID).First(&line).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "not found"})
	}
	if err := s.DB.Delete(&line).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"detail": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"detail": "removed"})
}
