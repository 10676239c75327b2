package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"seedmart_backend/models"
	"seedmart_backend/routes"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupAPI(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := models.MigrateMarketModels(db); err != nil {
		t.Fatalf("failed to migrate market models: %v", err)
	}
	if err := models.MigrateUserModels(db); err != nil {
		t.Fatalf("failed to migrate user models: %v", err)
	}

	router := gin.New()
	routes.SetupRoutes(router, db)
	return router, db
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func TestSeedLifecycle(t *testing.T) {
	router, _ := setupAPI(t)

	// Create
	w := doRequest(t, router, http.MethodPost, "/api/seeds", gin.H{
		"name":     "Tomato",
		"species":  "Solanum lycopersicum",
		"price":    2.50,
		"quantity": 100,
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var created models.Seed
	decodeJSON(t, w, &created)
	if created.ID == 0 {
		t.Fatal("created seed has no ID")
	}

	// Read back
	w = doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/seeds/%d", created.ID), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var fetched models.Seed
	decodeJSON(t, w, &fetched)
	if !fetched.Price.Equal(decimal.NewFromFloat(2.50)) {
		t.Errorf("price = %s; want 2.5", fetched.Price)
	}

	// Manual market update appends one observation per seed
	w = doRequest(t, router, http.MethodPost, "/api/market/update", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body.String())
	}
	var update struct {
		Success bool `json:"success"`
		Updates int  `json:"updates"`
	}
	decodeJSON(t, w, &update)
	if !update.Success || update.Updates != 1 {
		t.Fatalf("update response = %+v; want success with 1 update", update)
	}

	// Latest price reflects one random-walk step off 2.50
	w = doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/seeds/%d/latest-price", created.ID), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("latest-price status = %d", w.Code)
	}
	var latest models.PricePoint
	decodeJSON(t, w, &latest)
	if latest.Volume < 500 || latest.Volume > 10500 {
		t.Errorf("latest volume = %d; want within [500, 10500]", latest.Volume)
	}
	lo := decimal.NewFromFloat(2.42)
	hi := decimal.NewFromFloat(2.59)
	if latest.Price.LessThan(lo) || latest.Price.GreaterThan(hi) {
		t.Errorf("latest price = %s; want within [%s, %s]", latest.Price, lo, hi)
	}

	// History has the initial observation plus the tick
	w = doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/seeds/%d/prices?timeframe=1w", created.ID), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("prices status = %d", w.Code)
	}
	var history []models.PricePoint
	decodeJSON(t, w, &history)
	if len(history) != 2 {
		t.Errorf("len(history) = %d; want 2", len(history))
	}

	// A price change through PUT appends another observation
	w = doRequest(t, router, http.MethodPut, fmt.Sprintf("/api/seeds/%d", created.ID), gin.H{
		"price": 3.10,
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d, body %s", w.Code, w.Body.String())
	}
	w = doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/seeds/%d/prices?timeframe=1w", created.ID), nil, "")
	decodeJSON(t, w, &history)
	if len(history) != 3 {
		t.Errorf("len(history) after price update = %d; want 3", len(history))
	}

	// Delete, then the seed is gone
	w = doRequest(t, router, http.MethodDelete, fmt.Sprintf("/api/seeds/%d", created.ID), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/seeds/%d", created.ID), nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d; want 404", w.Code)
	}
}

func TestSeedValidationAndNotFound(t *testing.T) {
	router, _ := setupAPI(t)

	// Name is required
	w := doRequest(t, router, http.MethodPost, "/api/seeds", gin.H{"price": 1.00}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("create without name status = %d; want 400", w.Code)
	}

	w = doRequest(t, router, http.MethodGet, "/api/seeds/9999", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get missing seed status = %d; want 404", w.Code)
	}

	w = doRequest(t, router, http.MethodGet, "/api/seeds/9999/latest-price", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("latest-price for missing seed status = %d; want 404", w.Code)
	}
}

func TestPriceHistoryEndpointVariants(t *testing.T) {
	router, _ := setupAPI(t)

	// Missing seed: empty array with 200, never an error payload
	w := doRequest(t, router, http.MethodGet, "/api/seeds/9999/prices", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("prices for missing seed status = %d; want 200", w.Code)
	}
	var history []models.PricePoint
	decodeJSON(t, w, &history)
	if len(history) != 0 {
		t.Errorf("len(history) = %d; want 0", len(history))
	}

	// Seed created without a price has no observations; the endpoint
	// synthesizes and persists one
	w = doRequest(t, router, http.MethodPost, "/api/seeds", gin.H{"name": "Fern"}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	var seed models.Seed
	decodeJSON(t, w, &seed)

	w = doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/seeds/%d/prices", seed.ID), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("prices status = %d", w.Code)
	}
	decodeJSON(t, w, &history)
	if len(history) != 1 {
		t.Fatalf("len(history) = %d; want 1 synthesized observation", len(history))
	}

	w = doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/seeds/%d/prices", seed.ID), nil, "")
	decodeJSON(t, w, &history)
	if len(history) == 0 {
		t.Error("second call returned no observations; placeholder was not persisted")
	}

	// Latest-price still 404s for a seed whose history endpoint has
	// never been hit
	w = doRequest(t, router, http.MethodPost, "/api/seeds", gin.H{"name": "Moss"}, "")
	decodeJSON(t, w, &seed)
	w = doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/seeds/%d/latest-price", seed.ID), nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("latest-price with no history status = %d; want 404", w.Code)
	}

	// Legacy route returns the bare {date, price} shape
	w = doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/price-history/%d", seed.ID), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("legacy price-history status = %d", w.Code)
	}
	var legacy []map[string]interface{}
	decodeJSON(t, w, &legacy)
	for _, row := range legacy {
		if _, ok := row["date"]; !ok {
			t.Errorf("legacy row missing date: %v", row)
		}
	}
}

func TestMarketSummaryEndpoint(t *testing.T) {
	router, _ := setupAPI(t)

	w := doRequest(t, router, http.MethodPost, "/api/seeds", gin.H{
		"name": "Tomato", "price": 2.50, "quantity": 100,
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}

	w = doRequest(t, router, http.MethodGet, "/api/market/summary", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("summary status = %d", w.Code)
	}

	var summary struct {
		Seeds       []json.RawMessage `json:"seeds"`
		MarketStats struct {
			TotalVolume int             `json:"totalVolume"`
			MarketCap   decimal.Decimal `json:"marketCap"`
			SeedCount   int             `json:"seedCount"`
		} `json:"marketStats"`
	}
	decodeJSON(t, w, &summary)
	if len(summary.Seeds) != 1 {
		t.Errorf("len(seeds) = %d; want 1", len(summary.Seeds))
	}
	if summary.MarketStats.SeedCount != 1 {
		t.Errorf("seedCount = %d; want 1", summary.MarketStats.SeedCount)
	}
	if want := decimal.NewFromFloat(2500); !summary.MarketStats.MarketCap.Equal(want) {
		t.Errorf("marketCap = %s; want %s", summary.MarketStats.MarketCap, want)
	}
}

func TestAuthRegisterAndLogin(t *testing.T) {
	router, db := setupAPI(t)

	register := gin.H{
		"username":   "alice",
		"email":      "alice@example.com",
		"password":   "sunflower42",
		"first_name": "Alice",
	}
	w := doRequest(t, router, http.MethodPost, "/api/auth/register", register, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", w.Code, w.Body.String())
	}

	// Missing fields are rejected
	w = doRequest(t, router, http.MethodPost, "/api/auth/register", gin.H{"username": "bob"}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("register missing fields status = %d; want 400", w.Code)
	}

	// Duplicate username is rejected without creating a row
	w = doRequest(t, router, http.MethodPost, "/api/auth/register", gin.H{
		"username": "alice", "email": "other@example.com", "password": "x12345",
	}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("duplicate username status = %d; want 400", w.Code)
	}
	var userCount int64
	db.Model(&models.User{}).Count(&userCount)
	if userCount != 1 {
		t.Errorf("user count = %d; want 1", userCount)
	}

	// Duplicate email likewise
	w = doRequest(t, router, http.MethodPost, "/api/auth/register", gin.H{
		"username": "alice2", "email": "alice@example.com", "password": "x12345",
	}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("duplicate email status = %d; want 400", w.Code)
	}

	// Wrong password: 401 and no tokens
	w = doRequest(t, router, http.MethodPost, "/api/auth/login", gin.H{
		"username": "alice", "password": "wrong",
	}, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d; want 401", w.Code)
	}
	var badLogin map[string]interface{}
	decodeJSON(t, w, &badLogin)
	if _, ok := badLogin["access_token"]; ok {
		t.Error("failed login issued an access token")
	}

	// Correct login issues a token pair and stamps last_login
	w = doRequest(t, router, http.MethodPost, "/api/auth/login", gin.H{
		"username": "alice", "password": "sunflower42",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}
	var login struct {
		AccessToken  string      `json:"access_token"`
		RefreshToken string      `json:"refresh_token"`
		User         models.User `json:"user"`
	}
	decodeJSON(t, w, &login)
	if login.AccessToken == "" || login.RefreshToken == "" {
		t.Fatal("login did not return both tokens")
	}
	if login.User.LastLogin == nil {
		t.Error("login did not stamp last_login")
	}

	// Access token works on /me
	w = doRequest(t, router, http.MethodGet, "/api/auth/me", nil, login.AccessToken)
	if w.Code != http.StatusOK {
		t.Fatalf("me status = %d, body %s", w.Code, w.Body.String())
	}
	var me models.User
	decodeJSON(t, w, &me)
	if me.Username != "alice" {
		t.Errorf("me username = %q; want alice", me.Username)
	}

	// No token and refresh-token-on-access-route both fail
	w = doRequest(t, router, http.MethodGet, "/api/auth/me", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("me without token status = %d; want 401", w.Code)
	}
	w = doRequest(t, router, http.MethodGet, "/api/auth/me", nil, login.RefreshToken)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("me with refresh token status = %d; want 401", w.Code)
	}

	// Refresh: refresh token yields a new access token, access token
	// is rejected
	w = doRequest(t, router, http.MethodPost, "/api/auth/refresh", nil, login.RefreshToken)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", w.Code, w.Body.String())
	}
	var refreshed struct {
		AccessToken string `json:"access_token"`
	}
	decodeJSON(t, w, &refreshed)
	if refreshed.AccessToken == "" {
		t.Error("refresh did not return an access token")
	}
	w = doRequest(t, router, http.MethodPost, "/api/auth/refresh", nil, login.AccessToken)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("refresh with access token status = %d; want 401", w.Code)
	}

	// Logout
	w = doRequest(t, router, http.MethodPost, "/api/auth/logout", nil, login.AccessToken)
	if w.Code != http.StatusOK {
		t.Errorf("logout status = %d; want 200", w.Code)
	}
}
