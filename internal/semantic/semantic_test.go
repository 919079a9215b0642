package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestDecodeMapping(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{"strict", `{"Title": "Name", "Vendor": ""}`, map[string]string{"Title": "Name", "Vendor": ""}},
		{"fenced", "```json\n{\"Title\": \"Name\"}\n```", map[string]string{"Title": "Name"}},
		{"surrounding prose", `Here you go: {"Title": "Name"} Hope this helps.`, map[string]string{"Title": "Name"}},
		{"trailing comma", `{"Title": "Name", "Vendor": "Brand",}`, map[string]string{"Title": "Name", "Vendor": "Brand"}},
		{"null and numbers", `{"Title": null, "Variant Grams": 12, "SKU": " Code "}`, map[string]string{"Title": "", "SKU": "Code"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeMapping(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DecodeMapping("   ")
	assert.Error(t, err)
}

func TestFunctionClientSuggest(t *testing.T) {
	var got functionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"mapping": {"Title": "Product Name", "Vendor": null}}`))
	}))
	defer srv.Close()

	c := NewFunctionClient(srv.URL, "secret", time.Second)
	require.True(t, c.Configured())

	m, err := c.Suggest(context.Background(), []string{"Product Name"}, []string{"Title", "Vendor"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Title": "Product Name", "Vendor": ""}, m)
	assert.Equal(t, []string{"Product Name"}, got.UploadedHeaders)
	assert.Equal(t, []string{"Title", "Vendor"}, got.ShopifyFields)
}

func TestFunctionClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"server error with message", 500, `{"error": "OpenAI API key not configured"}`, "OpenAI API key not configured"},
		{"server error without body", 502, ``, "status 502"},
		{"missing mapping", 200, `{}`, "no mapping"},
		{"garbage", 200, `not json`, "decode response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewFunctionClient(srv.URL, "", time.Second).Suggest(context.Background(), nil, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.False(t, NewFunctionClient("", "", 0).Configured())
}

type fakeGenerator struct {
	text   string
	err    error
	model  string
	prompt string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func TestGeminiSuggest(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n{\"Title\": \"Item Name\"}\n```"}
	g := NewGemini("", "")
	g.gen = gen

	require.True(t, g.Configured())
	m, err := g.Suggest(context.Background(), []string{"Item Name"}, []string{"Title"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Title": "Item Name"}, m)
	assert.Equal(t, DefaultGeminiModel, gen.model)
	assert.Contains(t, gen.prompt, "Item Name")

	gen.err = errors.New("quota")
	_, err = g.Suggest(context.Background(), nil, nil)
	assert.ErrorContains(t, err, "gemini generation failed")
}

func TestGeminiUnconfigured(t *testing.T) {
	g := NewGemini("", "gemini-pro")
	assert.False(t, g.Configured())
	_, err := g.Suggest(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	s, err := New(Options{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = New(Options{Provider: "HTTP", Endpoint: "http://localhost/fn"})
	require.NoError(t, err)
	assert.True(t, s.Configured())

	s, err = New(Options{Provider: ProviderGemini})
	require.NoError(t, err)
	assert.False(t, s.Configured())

	_, err = New(Options{Provider: "openai"})
	assert.Error(t, err)
}
