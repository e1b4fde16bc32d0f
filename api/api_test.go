package api

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bitfsorg/pledgesplit-go/archive"
	"github.com/bitfsorg/pledgesplit-go/receipt"
	"github.com/bitfsorg/pledgesplit-go/rewards"
	"github.com/bitfsorg/pledgesplit-go/split"
	"github.com/bitfsorg/pledgesplit-go/store"
)

func newTestAPI(t *testing.T, opts Options) *API {
	t.Helper()
	key, err := ec.NewPrivateKey()
	require.NoError(t, err)
	svc, err := rewards.New(rewards.Options{
		Store:      store.NewMemStore(),
		SigningKey: key,
		Fee:        split.DefaultFeePolicy,
	})
	require.NoError(t, err)
	return New(svc, zap.NewNop(), opts)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

func TestHealth(t *testing.T) {
	h := newTestAPI(t, Options{}).Handler()
	w := do(t, h, "GET", "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPreview(t *testing.T) {
	h := newTestAPI(t, Options{}).Handler()

	w := do(t, h, "POST", "/api/splits/preview",
		`{"pledges":[{"amount":1000}],"shares":[{"username":"a","share_thousandths":400},{"username":"b"}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got rewards.Preview
	decode(t, w, &got)
	assert.Equal(t, int64(100), got.Fee)
	assert.Equal(t, int64(900), got.Pool)
	require.Len(t, got.Allocations, 2)
	assert.Equal(t, split.Allocation{Username: "a", Percent: 40, EstAmount: 360, IsFixed: true}, got.Allocations[0])
	assert.Equal(t, split.Allocation{Username: "b", Percent: 60, EstAmount: 540, IsFixed: false}, got.Allocations[1])
	assert.Empty(t, got.Warnings)
}

func TestPreview_OutputContract(t *testing.T) {
	h := newTestAPI(t, Options{}).Handler()
	w := do(t, h, "POST", "/api/splits/preview", `{"pledges":[{"amount":1000}],"shares":[{"username":"a"}]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]interface{}
	decode(t, w, &raw)
	allocs := raw["allocations"].([]interface{})
	first := allocs[0].(map[string]interface{})
	assert.Equal(t, "a", first["username"])
	assert.Equal(t, float64(100), first["percent"])
	assert.Equal(t, float64(900), first["estAmount"])
	assert.Equal(t, false, first["isFixed"])
}

func TestPreview_WarningsAndFee(t *testing.T) {
	h := newTestAPI(t, Options{}).Handler()

	w := do(t, h, "POST", "/api/splits/preview",
		`{"pledges":[{"amount":1000}],"shares":[{"username":"a","share_thousandths":700},{"username":"b","share_thousandths":700},{"username":"c"}],"fee_bps":0}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got rewards.Preview
	decode(t, w, &got)
	assert.Zero(t, got.Fee)
	assert.Equal(t, int64(-400), got.Allocations[2].EstAmount)
	require.Len(t, got.Warnings, 1)
	assert.Contains(t, got.Warnings[0], "exceed")

	w = do(t, h, "POST", "/api/splits/preview", `{"pledges":[],"shares":[],"fee_bps":10001}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPreview_BadBody(t *testing.T) {
	h := newTestAPI(t, Options{}).Handler()
	for _, body := range []string{`{`, `{"pledges":"x"}`, `{"unknown":1}`} {
		w := do(t, h, "POST", "/api/splits/preview", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %s", body)
	}
}

func TestIssueFlow(t *testing.T) {
	h := newTestAPI(t, Options{}).Handler()

	w := do(t, h, "POST", "/api/issues/42/pledges", `{"amount":500}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p split.Pledge
	decode(t, w, &p)
	assert.Equal(t, "USD", p.Currency)

	w = do(t, h, "POST", "/api/issues/42/pledges", `{"id":"p2","amount":500}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, h, "POST", "/api/issues/42/pledges", `{"id":"p2","amount":500}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, "GET", "/api/issues/42/pledges", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Pledges []split.Pledge `json:"pledges"`
	}
	decode(t, w, &list)
	assert.Len(t, list.Pledges, 2)

	w = do(t, h, "GET", "/api/issues/42/split/preview?share=alice:400&share=bob", "")
	require.Equal(t, http.StatusOK, w.Code)
	var preview rewards.Preview
	decode(t, w, &preview)
	assert.Equal(t, int64(360), preview.Allocations[0].EstAmount)

	w = do(t, h, "GET", "/api/issues/42/split", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, "POST", "/api/issues/42/split", `{"shares":[{"username":"alice","share_thousandths":400}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, h, "POST", "/api/issues/42/split",
		`{"shares":[{"username":"alice","share_thousandths":400},{"username":"bob"}]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rec store.SplitRecord
	decode(t, w, &rec)
	assert.Equal(t, []split.Payout{{Username: "alice", Amount: 360}, {Username: "bob", Amount: 540}}, rec.Payouts)
	require.NoError(t, receipt.Verify(&rec.Receipt))

	w = do(t, h, "GET", "/api/issues/42/split", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, "POST", "/api/issues/42/split", `{"shares":[{"username":"alice"}]}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, "POST", "/api/issues/42/pledges", `{"amount":1}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAddPledge_TooLarge(t *testing.T) {
	h := newTestAPI(t, Options{}).Handler()
	w := do(t, h, "POST", "/api/issues/3/pledges", `{"amount":9223372036854775807}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, h, "POST", "/api/splits/preview", `{"pledges":[{"amount":10000000000000000}],"shares":[{"username":"a"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	var got rewards.Preview
	decode(t, w, &got)
	assert.Equal(t, int64(1e15), got.Fee)
	assert.Equal(t, int64(9e15), got.Allocations[0].EstAmount)
	require.Len(t, got.Warnings, 1)
	assert.Contains(t, got.Warnings[0], "too large")
}

func TestSplitIssue_NoPledges(t *testing.T) {
	h := newTestAPI(t, Options{}).Handler()
	w := do(t, h, "POST", "/api/issues/9/split", `{"shares":[{"username":"a"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var e errorResponse
	decode(t, w, &e)
	assert.Contains(t, e.Error, "no pledges")
}

func TestPreviewIssue_BadShare(t *testing.T) {
	h := newTestAPI(t, Options{}).Handler()
	w := do(t, h, "GET", "/api/issues/1/split/preview?share=a:lots", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSigner(t *testing.T) {
	h := newTestAPI(t, Options{}).Handler()
	w := do(t, h, "GET", "/api/signer", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]interface{}
	decode(t, w, &got)
	assert.Len(t, got["pubkey"], 66)
	assert.Equal(t, float64(1000), got["fee_bps"])
}

func TestCORS(t *testing.T) {
	h := newTestAPI(t, Options{}).Handler()
	r := httptest.NewRequest("OPTIONS", "/api/splits/preview", nil)
	r.Header.Set("Origin", "https://polar.example")
	r.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

// --- rate limiting ---

func TestRateLimit_RejectsOverBurst(t *testing.T) {
	h := newTestAPI(t, Options{RateRPS: 0.001, RateBurst: 2}).Handler()

	for i := 0; i < 2; i++ {
		w := do(t, h, "GET", "/healthz", "")
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w := do(t, h, "GET", "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimit_PerClient(t *testing.T) {
	h := newTestAPI(t, Options{RateRPS: 0.001, RateBurst: 1, TrustXForwardedFor: true}).Handler()

	send := func(xff string) int {
		r := httptest.NewRequest("GET", "/healthz", nil)
		r.Header.Set("X-Forwarded-For", xff)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, send("1.1.1.1"))
	assert.Equal(t, http.StatusOK, send("2.2.2.2, 10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("1.1.1.1"))
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	assert.Equal(t, "1.2.3.4", clientKey(r, true))
	assert.Equal(t, "10.0.0.9", clientKey(r, false))

	r.RemoteAddr = "weird"
	assert.Equal(t, "weird", clientKey(r, false))
}

func TestLimiterStore_Cleanup(t *testing.T) {
	s := newLimiterStore(1, 1)
	s.get("a")
	s.get("b")
	assert.Equal(t, 2, s.size())

	s.idleTTL = -time.Second
	s.cleanup()
	assert.Equal(t, 0, s.size())
}

func TestGetReceipt(t *testing.T) {
	arc, err := archive.New(t.TempDir())
	require.NoError(t, err)
	key, err := ec.NewPrivateKey()
	require.NoError(t, err)
	svc, err := rewards.New(rewards.Options{
		Store:      store.NewMemStore(),
		SigningKey: key,
		Fee:        split.DefaultFeePolicy,
		Archive:    arc,
	})
	require.NoError(t, err)
	h := New(svc, zap.NewNop(), Options{}).Handler()

	do(t, h, "POST", "/api/issues/5/pledges", `{"amount":1000}`)
	w := do(t, h, "POST", "/api/issues/5/split", `{"shares":[{"username":"alice"}]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var rec store.SplitRecord
	decode(t, w, &rec)
	digest, err := rec.Receipt.Digest()
	require.NoError(t, err)

	w = do(t, h, "GET", "/api/receipts/"+hex.EncodeToString(digest), "")
	require.Equal(t, http.StatusOK, w.Code)
	var got receipt.Receipt
	decode(t, w, &got)
	assert.Equal(t, rec.Receipt, got)

	w = do(t, h, "GET", "/api/receipts/"+strings.Repeat("00", 32), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, "GET", "/api/receipts/xyz", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetReceipt_NoArchive(t *testing.T) {
	h := newTestAPI(t, Options{}).Handler()
	w := do(t, h, "GET", "/api/receipts/"+strings.Repeat("00", 32), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
