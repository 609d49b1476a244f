package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidateResponse(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, text)
}

func newTestClient(baseURL string, keys ...string) *Client {
	return NewClient(Config{
		BaseURL:        baseURL,
		Model:          "gemini-test",
		APIKeys:        keys,
		RequestTimeout: time.Second,
	})
}

func TestGenerateCalculationLogic(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		fmt.Fprint(w, candidateResponse("factor = rsi(close, 14)"))
	}))
	defer server.Close()

	logic, err := newTestClient(server.URL, "key-1").GenerateCalculationLogic(context.Background(), "RSI(14)")
	require.NoError(t, err)
	assert.Equal(t, "factor = rsi(close, 14)", logic)
	assert.Equal(t, "/v1beta/models/gemini-test:generateContent", gotPath)
	assert.Equal(t, "key-1", gotKey)
}

func TestGenerateCalculationLogic_StripsCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateResponse("```\nfactor = close\n```"))
	}))
	defer server.Close()

	logic, err := newTestClient(server.URL, "k").GenerateCalculationLogic(context.Background(), "close")
	require.NoError(t, err)
	assert.Equal(t, "factor = close", logic)
}

func TestGenerate_RotatesKeysOnFailure(t *testing.T) {
	var keysSeen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("x-goog-api-key")
		keysSeen = append(keysSeen, key)
		if key == "bad-key" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, candidateResponse("factor = close"))
	}))
	defer server.Close()

	logic, err := newTestClient(server.URL, "bad-key", "good-key").GenerateCalculationLogic(context.Background(), "close")
	require.NoError(t, err)
	assert.Equal(t, "factor = close", logic)
	assert.Equal(t, []string{"bad-key", "good-key"}, keysSeen)
}

func TestGenerate_AllKeysFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, "k1", "k2").GenerateCalculationLogic(context.Background(), "close")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 403")
}

func TestGenerate_NoKeysConfigured(t *testing.T) {
	_, err := newTestClient("http://unused").GenerateCalculationLogic(context.Background(), "close")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM API keys")
}

func TestGenerateFactor(t *testing.T) {
	payload := `{"name":"Momentum","formula":"close / shift(close, 20)","description":"d","intuition":"i","category":"momentum","buyThreshold":"1.0","sellThreshold":"-1.0"}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateResponse(payload))
	}))
	defer server.Close()

	factor, err := newTestClient(server.URL, "k").GenerateFactor(context.Background(), "momentum idea")
	require.NoError(t, err)
	assert.NotEmpty(t, factor.ID)
	assert.Equal(t, "Momentum", factor.Name)
	assert.Equal(t, "close / shift(close, 20)", factor.Formula)
	assert.Equal(t, "1.0", factor.BuyThreshold)
	assert.Greater(t, factor.CreatedAt, int64(0))
}

func TestGenerateFactor_MalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateResponse("not json at all"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, "k").GenerateFactor(context.Background(), "idea")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed factor payload")
}

func TestGenerateFactor_MissingRequiredFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateResponse(`{"description":"only"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, "k").GenerateFactor(context.Background(), "idea")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing name or formula")
}

func TestGenerateBulk(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, candidateResponse(fmt.Sprintf(`{"name":"F%d","formula":"close"}`, calls)))
	}))
	defer server.Close()

	factors, err := newTestClient(server.URL, "k").GenerateBulk(context.Background(), 3, "volatility")
	require.NoError(t, err)
	require.Len(t, factors, 3)
	assert.Equal(t, 3, calls)
	assert.NotEqual(t, factors[0].ID, factors[1].ID)
}

func TestGenerateBulk_RejectsNonPositiveCount(t *testing.T) {
	_, err := newTestClient("http://unused", "k").GenerateBulk(context.Background(), 0, "theme")
	assert.Error(t, err)
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"factor = close", "factor = close"},
		{"```\nfactor = close\n```", "factor = close"},
		{"```python\nfactor = close\n```", "factor = close"},
		{"  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, stripCodeFence(tc.in), tc.in)
	}
}
