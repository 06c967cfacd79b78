package ledger_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/shelf-sync-node/constant"
	"github.com/openshelf/shelf-sync-node/ledger"
)

const testLookupKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func gqlBody(ids ...string) string {
	edges := make([]string, 0, len(ids))
	for _, id := range ids {
		edges = append(edges, fmt.Sprintf(`{"node":{"id":"%s","tags":[{"name":"Op","value":""}]}}`, id))
	}
	return `{"data":{"transactions":{"edges":[` + strings.Join(edges, ",") + `]}}}`
}

func newClient(bundler, fast, canonical string, gateways []string) *ledger.HTTPClient {
	return ledger.NewHTTPClient(bundler, fast, canonical, gateways, "ethereum", zerolog.Nop())
}

func TestSubmit(t *testing.T) {
	payload := []byte("ciphertext")
	tags := []ledger.Tag{{Name: constant.TagAppName, Value: constant.AppName}}

	t.Run("accepted returns the transaction id", func(t *testing.T) {
		var gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path

			var req struct {
				Data string       `json:"data"`
				Tags []ledger.Tag `json:"tags"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.NotEmpty(t, req.Data)
			assert.Equal(t, tags, req.Tags)

			fmt.Fprint(w, `{"id":"tx1"}`)
		}))
		defer srv.Close()

		c := newClient(srv.URL, "", "", nil)
		id, err := c.Submit(context.Background(), payload, tags)
		require.NoError(t, err)
		assert.Equal(t, "tx1", id)
		assert.Equal(t, "/tx/ethereum", gotPath)
	})

	t.Run("402 maps to the payment sentinel whatever the body says", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			fmt.Fprint(w, `this is not json {{{`)
		}))
		defer srv.Close()

		c := newClient(srv.URL, "", "", nil)
		_, err := c.Submit(context.Background(), payload, tags)
		require.ErrorIs(t, err, ledger.ErrPaymentRequired)
	})

	t.Run("other statuses are plain errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := newClient(srv.URL, "", "", nil)
		_, err := c.Submit(context.Background(), payload, tags)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ledger.ErrPaymentRequired)
	})

	t.Run("invalid lookup key tag never reaches the network", func(t *testing.T) {
		called := false
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer srv.Close()

		c := newClient(srv.URL, "", "", nil)
		bad := []ledger.Tag{{Name: constant.TagCredentialLookup, Value: `") { id } #`}}
		_, err := c.Submit(context.Background(), payload, bad)
		require.Error(t, err)
		assert.False(t, called)
	})

	t.Run("empty tag name rejected", func(t *testing.T) {
		c := newClient("http://unreachable.invalid", "", "", nil)
		_, err := c.Submit(context.Background(), payload, []ledger.Tag{{Name: "", Value: "x"}})
		require.Error(t, err)
	})
}

func TestQuery(t *testing.T) {
	filters := []ledger.Tag{{Name: constant.TagCredentialLookup, Value: testLookupKey}}

	t.Run("merges both endpoints and marks canonical refs settled", func(t *testing.T) {
		fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, gqlBody("tx1", "tx2"))
		}))
		defer fast.Close()
		canonical := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, gqlBody("tx2", "tx3"))
		}))
		defer canonical.Close()

		c := newClient("", fast.URL, canonical.URL, nil)
		refs, err := c.Query(context.Background(), filters)
		require.NoError(t, err)
		require.Len(t, refs, 3)

		settled := map[string]bool{}
		for _, ref := range refs {
			settled[ref.ID] = ref.Settled
		}
		assert.False(t, settled["tx1"])
		assert.True(t, settled["tx2"])
		assert.True(t, settled["tx3"])
	})

	t.Run("one endpoint failing is tolerated", func(t *testing.T) {
		canonical := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, gqlBody("tx1"))
		}))
		defer canonical.Close()

		c := newClient("", "http://unreachable.invalid", canonical.URL, nil)
		refs, err := c.Query(context.Background(), filters)
		require.NoError(t, err)
		require.Len(t, refs, 1)
		assert.True(t, refs[0].Settled)
	})

	t.Run("both endpoints failing is an error", func(t *testing.T) {
		c := newClient("", "http://unreachable.invalid", "http://also.invalid", nil)
		_, err := c.Query(context.Background(), filters)
		require.Error(t, err)
	})

	t.Run("invalid lookup key filter rejected", func(t *testing.T) {
		c := newClient("", "http://unreachable.invalid", "http://also.invalid", nil)
		_, err := c.Query(context.Background(), []ledger.Tag{
			{Name: constant.TagCredentialLookup, Value: "NOT-HEX"},
		})
		require.Error(t, err)
	})
}

func TestFetchData(t *testing.T) {
	t.Run("first healthy gateway wins", func(t *testing.T) {
		down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer down.Close()
		up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/tx1", r.URL.Path)
			w.Write([]byte("payload-bytes"))
		}))
		defer up.Close()

		c := newClient("", "", "", []string{down.URL, up.URL})
		data, err := c.FetchData(context.Background(), "tx1")
		require.NoError(t, err)
		assert.Equal(t, []byte("payload-bytes"), data)
	})

	t.Run("all gateways failing is an error", func(t *testing.T) {
		c := newClient("", "", "", []string{"http://unreachable.invalid"})
		_, err := c.FetchData(context.Background(), "tx1")
		require.Error(t, err)
	})
}

func TestEstimatePrice(t *testing.T) {
	t.Run("parses the price for the exact size", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/price/ethereum/1234", r.URL.Path)
			fmt.Fprint(w, " 5000000000 \n")
		}))
		defer srv.Close()

		c := newClient(srv.URL, "", "", nil)
		price, err := c.EstimatePrice(context.Background(), 1234)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(5_000_000_000), price)
	})

	t.Run("malformed price is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "0.0042 ETH")
		}))
		defer srv.Close()

		c := newClient(srv.URL, "", "", nil)
		_, err := c.EstimatePrice(context.Background(), 10)
		require.Error(t, err)
	})
}

func TestIsSettled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables struct {
				IDs []string `json:"ids"`
			} `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if len(req.Variables.IDs) == 1 && req.Variables.IDs[0] == "tx1" {
			fmt.Fprint(w, gqlBody("tx1"))
			return
		}
		fmt.Fprint(w, gqlBody())
	}))
	defer srv.Close()

	c := newClient("", "", srv.URL, nil)

	settled, err := c.IsSettled(context.Background(), "tx1")
	require.NoError(t, err)
	assert.True(t, settled)

	settled, err = c.IsSettled(context.Background(), "tx2")
	require.NoError(t, err)
	assert.False(t, settled)
}

func TestEnvelopeSize(t *testing.T) {
	payload := []byte("some ciphertext bytes")
	tags := []ledger.Tag{
		{Name: constant.TagAppName, Value: constant.AppName},
		{Name: constant.TagSignature, Value: "c2lnbmF0dXJl"},
	}

	size, err := ledger.EnvelopeSize(payload, tags)
	require.NoError(t, err)

	// Tags and base64 overhead make the priced envelope strictly larger than
	// the raw payload.
	assert.Greater(t, size, len(payload))
}
