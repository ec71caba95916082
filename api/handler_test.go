package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	credits "github.com/goliatone/go-credits"
	"github.com/goliatone/go-credits/core"
	"github.com/shopspring/decimal"
)

var apiNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type apiFixture struct {
	router *gin.Engine
	store  *core.MemoryStore
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := core.NewMemoryStore()
	svc, err := credits.Setup(credits.DefaultConfig(),
		credits.WithStore(store),
		credits.WithClock(func() time.Time { return apiNow }),
	)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	facade, err := credits.NewFacadeFromService(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	router, err := NewRouter(facade)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return apiFixture{router: router, store: store}
}

func (f apiFixture) do(t *testing.T, method string, path string, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(CallerHeader, caller)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f apiFixture) fund(t *testing.T, account string, amount string) {
	t.Helper()
	err := f.store.RunInTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		return tx.Balances().Credit(ctx, core.DefaultSettlementSymbol, account, decimal.RequireFromString(amount))
	})
	if err != nil {
		t.Fatalf("fund %s: %v", account, err)
	}
}

func (f apiFixture) deploy(t *testing.T) {
	t.Helper()
	if rec := f.do(t, http.MethodPost, "/registry/initialize", "registry-owner", map[string]any{
		"name": "Carbon", "symbol": "CCO2",
	}); rec.Code != http.StatusOK {
		t.Fatalf("initialize registry: %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodPost, "/marketplace/initialize", "market-owner", map[string]any{
		"carbonCreditNFT": core.DefaultRegistryContract,
	}); rec.Code != http.StatusOK {
		t.Fatalf("initialize marketplace: %d %s", rec.Code, rec.Body.String())
	}
}

func (f apiFixture) mint(t *testing.T, to string, rate string) MintResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/registry/mint", "registry-owner", map[string]any{
		"to":             to,
		"typeOfCredit":   "forestry",
		"quantity":       10,
		"certificateURI": "ipfs://certificate",
		"expiryDate":     apiNow.Add(24 * time.Hour).Unix(),
		"rate":           rate,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("mint: %d %s", rec.Code, rec.Body.String())
	}
	var out MintResponse
	decode(t, rec, &out)
	return out
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out ErrorResponse
	decode(t, rec, &out)
	return out.Error.Code
}

func TestAPI_MintQueryAndPurchase(t *testing.T) {
	f := newAPIFixture(t)
	f.deploy(t)
	minted := f.mint(t, "alice", "1.5")
	if minted.Owner != "alice" || minted.Credit.Quantity != 10 {
		t.Fatalf("unexpected mint response %#v", minted)
	}

	rec := f.do(t, http.MethodGet, "/registry/settings", "", nil)
	var settings SettingsResponse
	decode(t, rec, &settings)
	if settings.TotalSupply != 1 || settings.Symbol != "CCO2" {
		t.Fatalf("unexpected settings %#v", settings)
	}

	f.fund(t, "bob", "10")
	rec = f.do(t, http.MethodPost, "/marketplace/purchase", "bob", map[string]any{
		"tokenId": minted.Credit.ID,
		"price":   "1.5",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("purchase: %d %s", rec.Code, rec.Body.String())
	}
	var purchase PurchaseResponse
	decode(t, rec, &purchase)
	if purchase.Seller != "alice" || purchase.Price != "1.50000000" {
		t.Fatalf("unexpected purchase %#v", purchase)
	}

	rec = f.do(t, http.MethodGet, "/registry/credits/0/owner", "", nil)
	var owner OwnerResponse
	decode(t, rec, &owner)
	if owner.Owner == nil || *owner.Owner != "bob" {
		t.Fatalf("expected bob as owner, got %#v", owner)
	}

	rec = f.do(t, http.MethodGet, "/registry/owners/bob/credits", "", nil)
	var owned []CreditResponse
	decode(t, rec, &owned)
	if len(owned) != 1 || owned[0].ID != minted.Credit.ID {
		t.Fatalf("unexpected credits by owner %#v", owned)
	}

	rec = f.do(t, http.MethodGet, "/marketplace/purchases?buyer=bob&limit=5", "", nil)
	var purchases []PurchaseResponse
	decode(t, rec, &purchases)
	if len(purchases) != 1 {
		t.Fatalf("expected one purchase, got %d", len(purchases))
	}

	rec = f.do(t, http.MethodPost, "/registry/credits/0/retire", "bob", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("retire: %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodGet, "/registry/credits/0", "", nil)
	var credit CreditResponse
	decode(t, rec, &credit)
	if !credit.Retired {
		t.Fatalf("expected retired credit")
	}
}

func TestAPI_ErrorEnvelope(t *testing.T) {
	f := newAPIFixture(t)
	f.deploy(t)
	f.mint(t, "alice", "")

	rec := f.do(t, http.MethodPost, "/registry/credits/0/retire", "mallory", nil)
	if rec.Code != http.StatusForbidden || errorCode(t, rec) != core.ErrorUnauthorized {
		t.Fatalf("expected 403 unauthorized, got %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/registry/credits/99", "", nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != core.ErrorNotFound {
		t.Fatalf("expected 404 not found, got %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/registry/credits/0/transfer", "", map[string]any{"to": "bob"})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != core.ErrorBadInput {
		t.Fatalf("expected 400 for missing caller, got %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/registry/credits/abc", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed token id, got %d", rec.Code)
	}

	if rec = f.do(t, http.MethodPost, "/registry/minters", "registry-owner", map[string]any{"minter": "carol"}); rec.Code != http.StatusCreated {
		t.Fatalf("add minter: %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodPost, "/registry/minters", "registry-owner", map[string]any{"minter": "carol"})
	if rec.Code != http.StatusConflict || errorCode(t, rec) != core.ErrorDuplicate {
		t.Fatalf("expected 409 duplicate minter, got %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/marketplace/purchase", "bob", map[string]any{"tokenId": 0, "price": "5"})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != core.ErrorInsufficientPayment {
		t.Fatalf("expected insufficient payment, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestAPI_RateAndMinterRoutes(t *testing.T) {
	f := newAPIFixture(t)
	f.deploy(t)
	f.mint(t, "alice", "2")

	rec := f.do(t, http.MethodPut, "/registry/credits/0/rate", "registry-owner", map[string]any{"rate": "3"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set rate: %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodGet, "/registry/credits/0/rate", "", nil)
	var rate RateResponse
	decode(t, rec, &rate)
	if rate.Rate == nil || *rate.Rate != "3" {
		t.Fatalf("expected rate 3, got %#v", rate)
	}

	rec = f.do(t, http.MethodPost, "/registry/minters", "registry-owner", map[string]any{"minter": "carol"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add minter: %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodDelete, "/registry/minters/carol", "registry-owner", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove minter: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", rec.Code)
	}
}
