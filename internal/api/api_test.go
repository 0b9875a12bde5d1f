package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/erazemk/avtomat/internal/auth"
	"github.com/erazemk/avtomat/internal/db"
	"github.com/erazemk/avtomat/internal/imaging"
	"github.com/erazemk/avtomat/internal/model"
	"github.com/erazemk/avtomat/internal/store"
	"github.com/erazemk/avtomat/internal/vending"
)

const testJWTSecret = "test-secret"

type testServer struct {
	*httptest.Server
	db       *sql.DB
	machine  *vending.Machine
	mediaDir string
	token    string
}

func demoItems() []model.Item {
	return []model.Item{
		{ID: "P001", Name: "Kopi Hitam", Price: decimal.NewFromInt(10000), Stock: 15, ImageRef: "/images/kopi.png"},
		{ID: "P002", Name: "Teh Manis", Price: decimal.NewFromInt(8000), Stock: 1, ImageRef: "/images/teh.png"},
	}
}

func newServer(t *testing.T, s vending.Store) *testServer {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	machine := vending.New(ctx, s)
	machine.Seed(ctx, demoItems())

	mediaDir := filepath.Join(t.TempDir(), "media")
	router := NewRouter(database, machine, testJWTSecret, mediaDir)
	server := httptest.NewServer(LoggingMiddleware(router))
	t.Cleanup(server.Close)

	hash, _ := auth.HashPassword("password1")
	if _, err := store.CreateOperator(ctx, database, "admin", hash, model.RoleAdmin); err != nil {
		t.Fatalf("creating admin: %v", err)
	}

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "password1"})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var login loginResponse
	json.NewDecoder(resp.Body).Decode(&login)
	if login.Token == "" {
		t.Fatal("empty token from login")
	}

	return &testServer{Server: server, db: database, machine: machine, mediaDir: mediaDir, token: login.Token}
}

// operatorToken creates an operator directly in the database and returns a
// token issued for it.
func (s *testServer) operatorToken(t *testing.T, username, role string) (*model.Operator, string) {
	t.Helper()
	op, err := store.CreateOperator(context.Background(), s.db, username, "unused-hash", role)
	if err != nil {
		t.Fatalf("creating operator %s: %v", username, err)
	}
	token, err := auth.GenerateToken(testJWTSecret, op.ID, op.Username, op.Role)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}
	return op, token
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	return newServer(t, store.NewCatalog(filepath.Join(t.TempDir(), "inventory.sqlite3")))
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

func TestLoginEndpoint(t *testing.T) {
	s := setupTestServer(t)

	resp := s.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = s.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "", "password": ""})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = s.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "nobody", "password": "password1"})
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := setupTestServer(t)

	resp := s.do(t, "GET", "/api/sales", s.token, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(t, "POST", "/api/auth/logout", s.token, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(t, "GET", "/api/sales", s.token, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestPublicProductGrid(t *testing.T) {
	s := setupTestServer(t)

	resp := s.do(t, "GET", "/api/items", "", nil)
	expectStatus(t, resp, http.StatusOK)
	items := decode[[]model.Item](t, resp)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "P001" || !items[0].Price.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("unexpected first item: %+v", items[0])
	}

	resp = s.do(t, "GET", "/api/items/P002", "", nil)
	expectStatus(t, resp, http.StatusOK)
	if item := decode[model.Item](t, resp); item.Name != "Teh Manis" {
		t.Errorf("expected Teh Manis, got %q", item.Name)
	}

	resp = s.do(t, "GET", "/api/items/P404", "", nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestPurchaseFlow(t *testing.T) {
	s := setupTestServer(t)

	resp := s.do(t, "POST", "/api/items/P002/purchase", "", nil)
	expectStatus(t, resp, http.StatusCreated)
	sale := decode[saleResponse](t, resp)
	if sale.Status != model.SaleSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", sale.Status)
	}
	if !sale.Total.Equal(decimal.NewFromInt(8000)) {
		t.Errorf("expected total 8000, got %s", sale.Total)
	}
	if !strings.HasPrefix(sale.ID, vending.SaleIDPrefix) {
		t.Errorf("unexpected sale id %q", sale.ID)
	}
	if sale.Warning != "" {
		t.Errorf("unexpected warning %q", sale.Warning)
	}

	// Teh Manis had a single unit.
	resp = s.do(t, "POST", "/api/items/P002/purchase", "", nil)
	expectStatus(t, resp, http.StatusConflict)
	if msg := decode[map[string]string](t, resp)["error"]; msg != vending.Message(vending.ErrOutOfStock) {
		t.Errorf("unexpected error message %q", msg)
	}

	resp = s.do(t, "POST", "/api/items/P404/purchase", "", nil)
	expectStatus(t, resp, http.StatusNotFound)

	if n := s.machine.SaleCount(); n != 1 {
		t.Errorf("expected 1 sale, got %d", n)
	}

	resp = s.do(t, "GET", "/api/items?available=true", "", nil)
	expectStatus(t, resp, http.StatusOK)
	if items := decode[[]model.Item](t, resp); len(items) != 1 || items[0].ID != "P001" {
		t.Errorf("expected only P001 available, got %+v", items)
	}
}

func TestSalesEndpoints(t *testing.T) {
	s := setupTestServer(t)

	resp := s.do(t, "POST", "/api/items/P001/purchase", "", nil)
	expectStatus(t, resp, http.StatusCreated)
	sale := decode[saleResponse](t, resp)
	s.do(t, "POST", "/api/items/P001/purchase", "", nil)

	resp = s.do(t, "GET", "/api/sales", "", nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = s.do(t, "GET", "/api/sales", s.token, nil)
	expectStatus(t, resp, http.StatusOK)
	if sales := decode[[]saleResponse](t, resp); len(sales) != 2 {
		t.Fatalf("expected 2 sales, got %d", len(sales))
	}

	resp = s.do(t, "GET", "/api/sales/summary", s.token, nil)
	expectStatus(t, resp, http.StatusOK)
	sum := decode[vending.SalesSummary](t, resp)
	if sum.Sales != 2 || sum.Succeeded != 2 || !sum.Revenue.Equal(decimal.NewFromInt(20000)) {
		t.Errorf("unexpected summary %+v", sum)
	}

	resp = s.do(t, "GET", "/api/sales/"+sale.ID, s.token, nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[saleResponse](t, resp); got.Item.Name != "Kopi Hitam" {
		t.Errorf("unexpected sale item %q", got.Item.Name)
	}

	resp = s.do(t, "GET", "/api/sales/"+sale.ID+"/receipt", s.token, nil)
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("Rp 10.000")) || !bytes.Contains(body, []byte(sale.ID)) {
		t.Errorf("unexpected receipt:\n%s", body)
	}

	resp = s.do(t, "GET", "/api/sales/TRX-missing", s.token, nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = s.do(t, "DELETE", "/api/sales", s.token, nil)
	expectStatus(t, resp, http.StatusOK)
	if n := s.machine.SaleCount(); n != 0 {
		t.Errorf("expected empty history, got %d", n)
	}
	if item, _ := s.machine.FindItem("P001"); item.Stock != 13 {
		t.Errorf("clearing sales must not touch stock, got %d", item.Stock)
	}
}

func TestItemsAdminFlow(t *testing.T) {
	s := setupTestServer(t)

	newItem := map[string]any{"id": "P003", "name": "Air Mineral", "price": "5000", "stock": 25}
	resp := s.do(t, "POST", "/api/items", s.token, newItem)
	expectStatus(t, resp, http.StatusCreated)

	resp = s.do(t, "POST", "/api/items", s.token, newItem)
	expectStatus(t, resp, http.StatusConflict)

	resp = s.do(t, "POST", "/api/items", s.token, map[string]any{"id": "P009", "name": "", "price": "1"})
	expectStatus(t, resp, http.StatusBadRequest)
	if msg := decode[map[string]string](t, resp)["error"]; !strings.HasPrefix(msg, "Invalid name") {
		t.Errorf("expected field message, got %q", msg)
	}

	resp = s.do(t, "POST", "/api/items", s.token, map[string]any{"id": "P009", "colour": "red"})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = s.do(t, "PUT", "/api/items/P001", s.token, map[string]any{"name": "Kopi Susu", "price": 12000, "stock": 15})
	expectStatus(t, resp, http.StatusOK)
	updated := decode[itemResponse](t, resp)
	if updated.ID != "P001" || updated.Name != "Kopi Susu" {
		t.Errorf("unexpected update result %+v", updated.Item)
	}

	resp = s.do(t, "PUT", "/api/items/P404", s.token, map[string]any{"name": "X", "price": 1, "stock": 1})
	expectStatus(t, resp, http.StatusNotFound)

	resp = s.do(t, "PUT", "/api/items/P001", s.token, map[string]any{"id": "P002", "name": "X", "price": 1, "stock": 1})
	expectStatus(t, resp, http.StatusConflict)

	resp = s.do(t, "DELETE", "/api/items/P003", s.token, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(t, "DELETE", "/api/items/P003", s.token, nil)
	expectStatus(t, resp, http.StatusNotFound)

	if n := s.machine.ItemCount(); n != 2 {
		t.Errorf("expected 2 items, got %d", n)
	}
}

func TestRoleBasedAccess(t *testing.T) {
	s := setupTestServer(t)

	_, attendant := s.operatorToken(t, "kasir", model.RoleAttendant)

	resp := s.do(t, "POST", "/api/items", attendant, map[string]any{"id": "P003", "name": "Air", "price": "5000", "stock": 1})
	expectStatus(t, resp, http.StatusForbidden)

	resp = s.do(t, "DELETE", "/api/items/P001", attendant, nil)
	expectStatus(t, resp, http.StatusForbidden)

	resp = s.do(t, "GET", "/api/operators", attendant, nil)
	expectStatus(t, resp, http.StatusForbidden)

	resp = s.do(t, "DELETE", "/api/sales", attendant, nil)
	expectStatus(t, resp, http.StatusForbidden)

	// Restocking is an attendant task.
	resp = s.do(t, "PUT", "/api/items/P002", attendant, map[string]any{"name": "Teh Manis", "price": "8000", "stock": 30})
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(t, "GET", "/api/sales/summary", attendant, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(t, "GET", "/api/sales", "garbage", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestOperatorsFlow(t *testing.T) {
	s := setupTestServer(t)

	resp := s.do(t, "POST", "/api/operators", s.token, map[string]string{"username": "kasir", "password": "short", "role": model.RoleAttendant})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = s.do(t, "POST", "/api/operators", s.token, map[string]string{"username": "kasir", "password": "kasir-pass", "role": "owner"})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = s.do(t, "POST", "/api/operators", s.token, map[string]string{"username": "kasir", "password": "kasir-pass", "role": model.RoleAttendant})
	expectStatus(t, resp, http.StatusCreated)
	op := decode[model.Operator](t, resp)

	resp = s.do(t, "POST", "/api/operators", s.token, map[string]string{"username": "kasir", "password": "kasir-pass", "role": model.RoleAttendant})
	expectStatus(t, resp, http.StatusConflict)

	resp = s.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "kasir", "password": "kasir-pass"})
	expectStatus(t, resp, http.StatusOK)
	if login := decode[loginResponse](t, resp); login.Role != model.RoleAttendant {
		t.Errorf("expected attendant role, got %q", login.Role)
	}

	resp = s.do(t, "GET", "/api/operators", s.token, nil)
	expectStatus(t, resp, http.StatusOK)
	if ops := decode[[]model.Operator](t, resp); len(ops) != 2 {
		t.Errorf("expected 2 operators, got %d", len(ops))
	}

	resp = s.do(t, "DELETE", "/api/operators/"+strconv.FormatInt(op.ID, 10), s.token, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "kasir", "password": "kasir-pass"})
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestDeletedOperatorTokenRejected(t *testing.T) {
	s := setupTestServer(t)

	other, otherToken := s.operatorToken(t, "boss2", model.RoleAdmin)

	resp := s.do(t, "GET", "/api/operators", otherToken, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(t, "DELETE", "/api/operators/"+strconv.FormatInt(other.ID, 10), s.token, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(t, "DELETE", "/api/items/P001", otherToken, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	if _, ok := s.machine.FindItem("P001"); !ok {
		t.Error("item removed with a deleted operator's token")
	}
}

func TestRoleComesFromOperatorRecord(t *testing.T) {
	s := setupTestServer(t)

	op, _ := s.operatorToken(t, "kasir", model.RoleAttendant)
	forged, _ := auth.GenerateToken(testJWTSecret, op.ID, op.Username, model.RoleAdmin)

	resp := s.do(t, "DELETE", "/api/sales", forged, nil)
	expectStatus(t, resp, http.StatusForbidden)

	resp = s.do(t, "GET", "/api/sales/summary", forged, nil)
	expectStatus(t, resp, http.StatusOK)
}

func TestChangePassword(t *testing.T) {
	s := setupTestServer(t)

	resp := s.do(t, "PUT", "/api/auth/password", s.token, map[string]string{"current_password": "wrong-one", "new_password": "new-password"})
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = s.do(t, "PUT", "/api/auth/password", s.token, map[string]string{"current_password": "password1", "new_password": "new-password"})
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "admin", "password": "new-password"})
	expectStatus(t, resp, http.StatusOK)
}

func (s *testServer) uploadImage(t *testing.T, id string) *http.Response {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for x := 0; x < 32; x++ {
		for y := 0; y < 32; y++ {
			img.Set(x, y, color.RGBA{120, 60, 20, 255})
		}
	}
	var pngData bytes.Buffer
	png.Encode(&pngData, img)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("image", "kopi.png")
	part.Write(pngData.Bytes())
	mw.Close()

	req, _ := http.NewRequest("PUT", s.URL+"/api/items/"+id+"/image", &body)
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) mediaFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(s.mediaDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("reading media dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestImageUpload(t *testing.T) {
	s := setupTestServer(t)

	resp := s.do(t, "GET", "/api/items/P001/image", "", nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = s.uploadImage(t, "P001")
	expectStatus(t, resp, http.StatusOK)
	if item := decode[itemResponse](t, resp); item.ImageRef != imaging.RefPrefix+imaging.FileName("P001") {
		t.Errorf("unexpected image ref %q", item.ImageRef)
	}

	resp = s.do(t, "GET", "/api/items/P001/image", "", nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", ct)
	}
}

func TestImageFollowsItem(t *testing.T) {
	s := setupTestServer(t)

	resp := s.uploadImage(t, "P001")
	expectStatus(t, resp, http.StatusOK)
	ref := decode[itemResponse](t, resp).ImageRef

	resp = s.do(t, "PUT", "/api/items/P001", s.token, map[string]any{
		"id": "P009", "name": "Kopi Hitam", "price": "10000", "stock": 15, "image_ref": ref,
	})
	expectStatus(t, resp, http.StatusOK)
	moved := decode[itemResponse](t, resp).ImageRef
	if moved != imaging.RefPrefix+imaging.FileName("P009") {
		t.Errorf("expected image to follow rename, got %q", moved)
	}
	if files := s.mediaFiles(t); len(files) != 1 || files[0] != imaging.FileName("P009") {
		t.Errorf("unexpected media files after rename: %v", files)
	}

	resp = s.do(t, "GET", "/api/items/P009/image", "", nil)
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(t, "DELETE", "/api/items/P009", s.token, nil)
	expectStatus(t, resp, http.StatusOK)
	if files := s.mediaFiles(t); len(files) != 0 {
		t.Errorf("expected image removed with its item, found %v", files)
	}
}

func TestInventoryStatusAndReload(t *testing.T) {
	s := setupTestServer(t)

	resp := s.do(t, "GET", "/api/inventory", s.token, nil)
	expectStatus(t, resp, http.StatusOK)
	status := decode[inventoryStatus](t, resp)
	if status.Items != 2 || status.Load != "missing" || status.Fallback {
		t.Errorf("unexpected status %+v", status)
	}

	resp = s.do(t, "POST", "/api/inventory/reload", s.token, nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[map[string]any](t, resp); got["load"] != "ok" || got["items"] != float64(2) {
		t.Errorf("unexpected reload result %v", got)
	}
}

// brokenStore accepts nothing, like a read-only disk.
type brokenStore struct{}

func (brokenStore) Save(context.Context, []model.Item) error {
	return errors.New("read-only file system")
}

func (brokenStore) Load(context.Context) ([]model.Item, store.LoadResult) {
	return []model.Item{}, store.LoadResult{Status: store.LoadMissing}
}

func TestUnsavedChangesCarryWarning(t *testing.T) {
	s := newServer(t, brokenStore{})

	resp := s.do(t, "POST", "/api/items/P001/purchase", "", nil)
	expectStatus(t, resp, http.StatusCreated)
	sale := decode[saleResponse](t, resp)
	if sale.Warning != vending.Message(vending.ErrNotPersisted) {
		t.Errorf("expected persistence warning, got %q", sale.Warning)
	}
	if item, _ := s.machine.FindItem("P001"); item.Stock != 14 {
		t.Errorf("in-memory sale should stand, stock is %d", item.Stock)
	}
}
