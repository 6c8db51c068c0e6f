package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/etnz/immotax"
	"github.com/etnz/immotax/filestore"
	"github.com/etnz/immotax/llm"
	"github.com/etnz/immotax/mail"
	"github.com/etnz/immotax/store"
	"github.com/etnz/immotax/webhook"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeLLM returns a canned response, or an error.
type fakeLLM struct {
	response any
	err      error
	calls    int
}

func (f *fakeLLM) InvokeJSON(ctx context.Context, req llm.Request) (any, error) {
	f.calls++
	return f.response, f.err
}

type env struct {
	t      *testing.T
	store  *store.Store
	ents   store.Entities
	mail   *mail.LogSender
	llm    *fakeLLM
	router *gin.Engine
	user   *immotax.User
	token  string
}

func newEnv(t *testing.T, opts ...func(*Deps)) *env {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	files, err := filestore.NewLocal(t.TempDir())
	require.NoError(t, err)

	e := &env{t: t, store: s, ents: s.Entities(), mail: &mail.LogSender{}, llm: &fakeLLM{err: llm.ErrDisabled}}
	e.user, e.token = e.newUser("owner@example.com")

	deps := Deps{
		Store: s,
		Files: files,
		LLM:   e.llm,
		Mail:  e.mail,
		Now:   func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	e.router = New(deps).Router()
	return e
}

// newUser creates a user and returns its token.
func (e *env) newUser(email string) (*immotax.User, string) {
	token, hash, err := NewToken()
	require.NoError(e.t, err)
	u := &immotax.User{Email: email, Name: "Max Mustermann", TokenHash: hash}
	require.NoError(e.t, e.ents.Users.Create(context.Background(), "", u))
	return u, token
}

func (e *env) do(method, path string, body any) *httptest.ResponseRecorder {
	return e.doAs(e.token, method, path, body)
}

func (e *env) doAs(token, method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(e.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (e *env) create(entity immotax.Entity) {
	e.t.Helper()
	require.NoError(e.t, e.store.Create(context.Background(), e.user.ID, entity))
}

// rental creates a property rented since January 2024, paid for January only.
func (e *env) rental() (*immotax.Property, *immotax.LeaseContract) {
	property := &immotax.Property{
		Name:          "Lindenstraße 5",
		AcquiredOn:    immotax.MustParse("2020-03-01"),
		PurchasePrice: immotax.EUR(300000),
		BuildingValue: immotax.EUR(240000),
	}
	e.create(property)
	tenant := &immotax.Tenant{FirstName: "Erika", LastName: "Mustermann", Email: "erika@example.com"}
	e.create(tenant)
	lease := &immotax.LeaseContract{
		PropertyID:  property.ID,
		TenantID:    tenant.ID,
		Start:       immotax.MustParse("2024-01-01"),
		MonthlyRent: immotax.EUR(800),
	}
	e.create(lease)
	e.create(&immotax.RentPayment{LeaseID: lease.ID, Date: immotax.MustParse("2024-01-03"), Amount: immotax.EUR(800)})
	return property, lease
}

func TestAuthentication(t *testing.T) {
	e := newEnv(t)

	w := e.doAs("", http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHENTICATED", decode[errorResponse](t, w).Code)

	w = e.doAs("itx_wrong", http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[immotax.User](t, w)
	assert.Equal(t, e.user.ID, me.ID)
	assert.Empty(t, me.TokenHash)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	w := e.doAs("", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestEntities_CRUD(t *testing.T) {
	e := newEnv(t)

	body := `{"id":"chosen","name":"Lindenstraße 5","zip":"10115","purchasePrice":{"amount":"300000","currency":"EUR"}}`
	w := e.do(http.MethodPost, "/entities/Property", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[immotax.Property](t, w)
	assert.NotEqual(t, "chosen", created.ID)
	assert.Equal(t, e.user.ID, created.Owner)

	w = e.do(http.MethodGet, "/entities/Property/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Lindenstraße 5", decode[immotax.Property](t, w).Name)

	w = e.do(http.MethodGet, `/entities/Property?zip=%2210115%22`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]immotax.Property](t, w), 1)
	w = e.do(http.MethodGet, `/entities/Property?zip=%2299999%22`, nil)
	assert.Len(t, decode[[]immotax.Property](t, w), 0)

	w = e.do(http.MethodPut, "/entities/Property/"+created.ID, `{"name":"Lindenstraße 7"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[immotax.Property](t, w)
	assert.Equal(t, created.Created, updated.Created)
	assert.Equal(t, "Lindenstraße 7", updated.Name)

	// another user sees nothing.
	_, other := e.newUser("other@example.com")
	w = e.doAs(other, http.MethodGet, "/entities/Property/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = e.doAs(other, http.MethodDelete, "/entities/Property/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodDelete, "/entities/Property/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(http.MethodGet, "/entities/Property/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[errorResponse](t, w).Code)
}

func TestEntities_Errors(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{"users are not managed", http.MethodGet, "/entities/User", "", http.StatusBadRequest},
		{"unknown kind", http.MethodGet, "/entities/Car", "", http.StatusBadRequest},
		{"invalid entity", http.MethodPost, "/entities/Property", `{"zip":"abc"}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/entities/Property", `{"name":`, http.StatusBadRequest},
		{"invalid limit", http.MethodGet, "/entities/Property?limit=-1", "", http.StatusBadRequest},
		{"invalid filter", http.MethodGet, "/entities/Property?na-me=x", "", http.StatusBadRequest},
		{"update of a missing entity", http.MethodPut, "/entities/Property/missing", `{"name":"x"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body any
			if tt.body != "" {
				body = tt.body
			}
			w := e.do(tt.method, tt.path, body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestEntities_RejectDuplicates(t *testing.T) {
	e := newEnv(t)
	invoice := `{"vendor":"Stadtwerke","number":"R-1","date":"2023-05-02","amount":{"amount":"120","currency":"EUR"},"category":"utilities"}`

	w := e.do(http.MethodPost, "/entities/Invoice?rejectDuplicates=true", invoice)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(http.MethodPost, "/entities/Invoice?rejectDuplicates=true", invoice)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE", decode[errorResponse](t, w).Code)

	// without the flag, duplicates are accepted.
	w = e.do(http.MethodPost, "/entities/Invoice", invoice)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCalculateFIFO(t *testing.T) {
	e := newEnv(t)
	trades := `[
		{"date":"2023-01-10","side":"buy","asset":"BTC","quantity":"1","amount":"20000","currency":"EUR"},
		{"date":"2023-02-10","side":"buy","asset":"BTC","quantity":"1","amount":"30000","currency":"EUR"},
		{"date":"2023-06-10","side":"sell","asset":"BTC","quantity":"1.5","amount":"45000","currency":"EUR"}
	]`

	w := e.do(http.MethodPost, "/functions/calculateFIFO", `{"trades":`+trades+`,"markdown":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[struct {
		Result struct {
			Quantity     immotax.Quantity `json:"quantity"`
			RealizedGain immotax.Money    `json:"realizedGain"`
			Lots         []any            `json:"lots"`
		} `json:"result"`
		Markdown string `json:"markdown"`
	}](t, w)
	assert.Equal(t, "0.5", resp.Result.Quantity.String())
	assert.Len(t, resp.Result.Lots, 1)
	// 45000 - 20000 - 15000
	assert.True(t, resp.Result.RealizedGain.Equal(immotax.EUR(10000)), resp.Result.RealizedGain.String())
	assert.NotEmpty(t, resp.Markdown)

	oversell := `[{"date":"2023-06-10","side":"sell","asset":"BTC","quantity":"1","amount":"45000","currency":"EUR"}]`
	w = e.do(http.MethodPost, "/functions/calculateFIFO", `{"trades":`+oversell+`}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/functions/calculateFIFO", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/functions/calculateFIFO", `{"asset":"BTC","method":"lifo"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalculateFIFO_StoredTrades(t *testing.T) {
	e := newEnv(t)
	e.create(immotax.NewAssetTrade(immotax.NewBuy(immotax.MustParse("2023-01-10"), "ETH", immotax.Q(2), immotax.EUR(3000))))
	e.create(immotax.NewAssetTrade(immotax.NewBuy(immotax.MustParse("2023-01-11"), "BTC", immotax.Q(1), immotax.EUR(20000))))

	w := e.do(http.MethodPost, "/functions/calculateFIFO", `{"asset":"ETH"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[struct {
		Result struct {
			Asset     string        `json:"asset"`
			CostBasis immotax.Money `json:"costBasis"`
		} `json:"result"`
	}](t, w)
	assert.Equal(t, "ETH", resp.Result.Asset)
	assert.True(t, resp.Result.CostBasis.Equal(immotax.EUR(3000)))
}

func TestCalculateFIFO_SameDayTrades(t *testing.T) {
	e := newEnv(t)
	on := immotax.MustParse("2024-03-01")
	for range 10 {
		e.create(immotax.NewAssetTrade(immotax.NewBuy(on, "BTC", immotax.Q(1), immotax.EUR(30000))))
		e.create(immotax.NewAssetTrade(immotax.NewSell(on, "BTC", immotax.Q(1), immotax.EUR(31000))))
	}

	w := e.do(http.MethodPost, "/functions/calculateFIFO", `{"asset":"BTC"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[struct {
		Result struct {
			Quantity     immotax.Quantity `json:"quantity"`
			RealizedGain immotax.Money    `json:"realizedGain"`
		} `json:"result"`
	}](t, w)
	assert.True(t, resp.Result.Quantity.IsZero(), resp.Result.Quantity.String())
	assert.True(t, resp.Result.RealizedGain.Equal(immotax.EUR(10000)), resp.Result.RealizedGain.String())
}

func TestCalculateFIFOGainLoss_ForeignCurrency(t *testing.T) {
	e := newEnv(t)
	trades := `[
		{"date":"2024-01-10","side":"buy","asset":"AAPL","quantity":"10","amount":"1000","currency":"USD"},
		{"date":"2024-05-10","side":"sell","asset":"AAPL","quantity":"10","amount":"1900","currency":"USD"}
	]`
	// the exemption limit is in euros: a report in dollars cannot be checked against it.
	w := e.do(http.MethodPost, "/functions/calculateFIFOGainLoss", `{"currency":"USD","trades":`+trades+`}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "VALIDATION", decode[errorResponse](t, w).Code)
}

func TestCalculateFIFOGainLoss_Save(t *testing.T) {
	e := newEnv(t)
	e.create(immotax.NewAssetTrade(immotax.NewBuy(immotax.MustParse("2023-01-10"), "BTC", immotax.Q(1), immotax.EUR(20000))))
	e.create(immotax.NewAssetTrade(immotax.NewSell(immotax.MustParse("2023-06-10"), "BTC", immotax.Q(1), immotax.EUR(25000))))

	w := e.do(http.MethodPost, "/functions/calculateFIFOGainLoss", `{"save":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/functions/calculateFIFOGainLoss", `{"year":2023,"save":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[gainLossResponse](t, w)
	require.NotNil(t, resp.Saved)
	assert.Equal(t, []string{"BTC"}, resp.Saved.Assets)
	assert.True(t, resp.Saved.Summary.Taxable.Equal(immotax.EUR(5000)), resp.Saved.Summary.Taxable.String())

	saved, err := e.ents.GainsReports.Where(context.Background(), e.user.ID, "taxYear", 2023)
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestCheckDuplicates(t *testing.T) {
	e := newEnv(t)
	e.create(&immotax.Tenant{FirstName: "Erika", LastName: "Mustermann", Email: "Erika@Example.com"})

	w := e.do(http.MethodPost, "/functions/checkDuplicates", `{"kind":"Tenant","entity":{"firstName":"E.","lastName":"Mustermann","email":"erika@example.com"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[struct {
		Count int `json:"count"`
	}](t, w).Count)

	w = e.do(http.MethodPost, "/functions/checkDuplicates", `{"kind":"Tenant","entity":{"email":"max@example.com"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"duplicates":[],"count":0}`, w.Body.String())

	w = e.do(http.MethodPost, "/functions/checkDuplicates", `{"kind":"Property","entity":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateElsterSubmission(t *testing.T) {
	fields := func(surplus float64) map[string]any {
		return map[string]any{"rents": 9600.0, "utilities": 0.0, "expenses": 1000.0, "depreciation": 0.0, "surplus": surplus}
	}
	tests := []struct {
		name       string
		surplus    float64
		llm        fakeLLM
		code       int
		wantStatus string
		reviewed   bool
	}{
		{
			name:       "valid without review",
			surplus:    8600,
			llm:        fakeLLM{err: llm.ErrDisabled},
			code:       http.StatusOK,
			wantStatus: immotax.SubmissionValidated,
		},
		{
			name:       "inconsistent total",
			surplus:    5000,
			llm:        fakeLLM{err: llm.ErrDisabled},
			code:       http.StatusOK,
			wantStatus: immotax.SubmissionInvalid,
		},
		{
			name:    "reviewed by the model",
			surplus: 8600,
			llm: fakeLLM{response: map[string]any{
				"plausible": true,
				"summary":   "plausible",
				"findings":  []any{map[string]any{"severity": "warning", "field": "rents", "message": "high rents"}},
			}},
			code:       http.StatusOK,
			wantStatus: immotax.SubmissionValidated,
			reviewed:   true,
		},
		{
			name:       "model failure",
			surplus:    8600,
			llm:        fakeLLM{err: errors.New("quota exceeded")},
			code:       http.StatusBadGateway,
			wantStatus: immotax.SubmissionDraft,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			*e.llm = tt.llm
			property, _ := e.rental()
			sub := &immotax.ElsterSubmission{
				TaxYear:    2023,
				Form:       "AnlageV",
				Status:     immotax.SubmissionDraft,
				TaxNumber:  "2181508150",
				PropertyID: property.ID,
				Fields:     fields(tt.surplus),
			}
			e.create(sub)

			w := e.do(http.MethodPost, "/functions/validateElsterSubmission", map[string]any{"id": sub.ID})
			require.Equal(t, tt.code, w.Code, w.Body.String())
			if tt.code == http.StatusOK {
				resp := decode[validateResponse](t, w)
				assert.Equal(t, tt.reviewed, resp.Reviewed)
				assert.Equal(t, tt.wantStatus == immotax.SubmissionValidated, resp.Valid)
			}

			stored, err := e.ents.Submissions.Get(context.Background(), e.user.ID, sub.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, stored.Status)
			if tt.reviewed {
				assert.Equal(t, "plausible", stored.Review["summary"])
			}
		})
	}
}

func TestValidateElsterSubmission_Missing(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/functions/validateElsterSubmission", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(http.MethodPost, "/functions/validateElsterSubmission", `{"id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRentStatusAndReminder(t *testing.T) {
	e := newEnv(t)
	_, lease := e.rental()

	w := e.do(http.MethodPost, "/functions/rentStatus", map[string]any{"leaseId": lease.ID, "markdown": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	status := decode[rentStatusResponse](t, w)
	assert.True(t, status.Status.Arrears.Equal(immotax.EUR(1600)), status.Status.Arrears.String())
	assert.Equal(t, []string{"2024-02", "2024-03"}, status.Status.UnpaidMonths)
	assert.NotEmpty(t, status.Markdown)

	// a forced reminder is sent each time.
	for range 2 {
		w = e.do(http.MethodPost, "/functions/sendRentReminder", map[string]any{"leaseId": lease.ID})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.True(t, decode[struct {
			Sent bool `json:"sent"`
		}](t, w).Sent)
	}
	sent := e.mail.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, []string{"erika@example.com"}, sent[0].To)

	w = e.do(http.MethodPost, "/functions/sendRentReminder", map[string]any{"leaseId": lease.ID, "asOf": "2024-01-20"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[struct {
		Sent bool `json:"sent"`
	}](t, w).Sent)
}

func TestExportTaxData(t *testing.T) {
	e := newEnv(t)
	e.rental()

	w := e.do(http.MethodPost, "/functions/exportTaxData", `{"year":2024,"format":"pdf"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/functions/exportTaxData", `{"year":2024,"format":"csv"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	doc := decode[documentResponse](t, w).Document
	require.NotNil(t, doc)
	assert.Equal(t, "immotax-2024-csv.csv", doc.Name)
	assert.Equal(t, immotax.DocumentExport, doc.Type)

	w = e.do(http.MethodGet, "/documents/"+doc.ID+"/content", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2024-01-03")
	assert.Contains(t, w.Header().Get("Content-Disposition"), doc.Name)
}

// failingRates is a rate source that is always down.
type failingRates struct{}

func (failingRates) Rates(context.Context, string, string, immotax.Range) (*immotax.History[float64], error) {
	return nil, errors.New("connection refused")
}

func TestExportTaxData_Errors(t *testing.T) {
	e := newEnv(t, func(d *Deps) { d.Rates = failingRates{} })
	e.rental()

	// EUR trades need no rates.
	e.create(immotax.NewAssetTrade(immotax.NewBuy(immotax.MustParse("2024-01-10"), "BTC", immotax.Q(1), immotax.EUR(20000))))
	w := e.do(http.MethodPost, "/functions/exportTaxData", `{"year":2024,"format":"json"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// a sale exceeding the holdings is the user's mistake, not the rates'.
	e.create(immotax.NewAssetTrade(immotax.NewSell(immotax.MustParse("2024-02-10"), "BTC", immotax.Q(2), immotax.EUR(50000))))
	w = e.do(http.MethodPost, "/functions/exportTaxData", `{"year":2024,"format":"json"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	e.create(immotax.NewAssetTrade(immotax.NewBuy(immotax.MustParse("2024-01-11"), "AAPL", immotax.Q(1), immotax.M(180, "USD"))))
	w = e.do(http.MethodPost, "/functions/exportTaxData", `{"year":2024,"format":"json"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
	assert.Equal(t, "INTEGRATION", decode[errorResponse](t, w).Code)
}

func TestGenerateDocuments(t *testing.T) {
	e := newEnv(t)
	property, lease := e.rental()
	payments, err := e.ents.Payments.Where(context.Background(), e.user.ID, "leaseId", lease.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	e.create(immotax.NewAssetTrade(immotax.NewBuy(immotax.MustParse("2023-01-10"), "BTC", immotax.Q(1), immotax.EUR(20000))))

	tests := []struct {
		function string
		body     map[string]any
		kind     string
	}{
		{"generateAnlageV", map[string]any{"propertyId": property.ID, "year": 2024}, immotax.DocumentAnlageV},
		{"generateGainsReport", map[string]any{"year": 2023}, immotax.DocumentGainsReport},
		{"generateRentReceipt", map[string]any{"paymentId": payments[0].ID}, immotax.DocumentReceipt},
	}
	for _, tt := range tests {
		t.Run(tt.function, func(t *testing.T) {
			w := e.do(http.MethodPost, "/functions/"+tt.function, tt.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			doc := decode[documentResponse](t, w).Document
			require.NotNil(t, doc)
			assert.Equal(t, tt.kind, doc.Type)
			assert.Equal(t, "application/pdf", doc.ContentType)

			w = e.do(http.MethodGet, "/documents/"+doc.ID+"/content", nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-"))
		})
	}

	w := e.do(http.MethodPost, "/functions/generateAnlageV", map[string]any{"propertyId": "missing", "year": 2024})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadDocument(t *testing.T) {
	e := newEnv(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("taxYear", "2023"))
	fw, err := mw.CreateFormFile("file", "invoice.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Stadtwerke 120 EUR"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	doc := decode[immotax.Document](t, w)
	assert.Equal(t, 2023, doc.TaxYear)
	assert.Equal(t, int64(18), doc.Size)
	assert.Equal(t, e.user.ID, filestore.Owner(doc.StorageKey))

	w = e.do(http.MethodGet, "/documents/"+doc.ID+"/content", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Stadtwerke 120 EUR", w.Body.String())

	w = e.do(http.MethodPost, "/documents", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTestWebhook(t *testing.T) {
	e := newEnv(t)
	var signature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get(webhook.SignatureHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer failing.Close()

	ok := &immotax.Webhook{URL: srv.URL, Events: []string{"*"}, Secret: "s3cret", Active: true}
	e.create(ok)
	gone := &immotax.Webhook{URL: failing.URL, Events: []string{"*"}, Active: true}
	e.create(gone)

	w := e.do(http.MethodPost, "/functions/testWebhook", map[string]any{"id": ok.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.HasPrefix(signature, "sha256="), signature)

	w = e.do(http.MethodPost, "/functions/testWebhook", map[string]any{"id": gone.ID})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "INTEGRATION", decode[errorResponse](t, w).Code)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{immotax.ErrValidation, http.StatusBadRequest},
		{immotax.ErrOversell, http.StatusBadRequest},
		{store.ErrNotFound, http.StatusNotFound},
		{filestore.ErrNotFound, http.StatusNotFound},
		{ErrUnauthenticated, http.StatusUnauthorized},
		{ErrDuplicate, http.StatusConflict},
		{integration("mail", errors.New("connection refused")), http.StatusBadGateway},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := status(tt.err); got != tt.code {
			t.Errorf("status(%v) = %d, want %d", tt.err, got, tt.code)
		}
	}
}

func TestHashToken(t *testing.T) {
	token, hash, err := NewToken()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "itx_"))
	assert.Equal(t, HashToken(token), hash)
	assert.Len(t, hash, 64)
	other, _, _ := NewToken()
	assert.NotEqual(t, token, other)
}
