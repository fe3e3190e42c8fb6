package twitter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdbm/blocktogether/internal/types/account"
	"github.com/wdbm/blocktogether/internal/types/relationship"
)

var testCreds = account.Credentials{AccessToken: "token", AccessTokenSecret: "secret"}

func TestLookupRelationships(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/friendships/lookup.json", r.URL.Path)
		assert.Equal(t, "1,2,3", r.URL.Query().Get("user_id"))
		assert.Contains(t, r.Header.Get("Authorization"), "OAuth")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id_str": "1", "screen_name": "friendly", "connections": ["following"]},
			{"id_str": "3", "screen_name": "stranger", "connections": []}
		]`))
	}))
	defer server.Close()

	client := NewClientWithConfig("ck", "cs", server.URL)

	rels, err := client.LookupRelationships(context.Background(), testCreds, []string{"1", "2", "3"})
	require.NoError(t, err)
	require.Len(t, rels, 2)

	assert.Equal(t, "1", rels[0].UID)
	assert.True(t, rels[0].Has(relationship.ConnectionFollowing))
	assert.Equal(t, "stranger", rels[1].ScreenName)
	assert.False(t, rels[1].Has(relationship.ConnectionBlocking))
}

func TestLookupRelationshipsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"errors":[{"code":88,"message":"Rate limit exceeded"}]}`))
	}))
	defer server.Close()

	client := NewClientWithConfig("ck", "cs", server.URL)

	_, err := client.LookupRelationships(context.Background(), testCreds, []string{"1"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Payload, "Rate limit exceeded")
}

func TestCreateBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/blocks/create.json", r.URL.Path)

		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "9", r.PostFormValue("user_id"))
		assert.Equal(t, "true", r.PostFormValue("skip_status"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id_str": "9", "screen_name": "spammer"}`))
	}))
	defer server.Close()

	client := NewClientWithConfig("ck", "cs", server.URL)

	blocked, err := client.CreateBlock(context.Background(), testCreds, "9")
	require.NoError(t, err)
	assert.Equal(t, "9", blocked.UID)
	assert.Equal(t, "spammer", blocked.ScreenName)
}

func TestCreateBlockAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"errors":[{"code":162,"message":"You have been blocked from blocking"}]}`))
	}))
	defer server.Close()

	client := NewClientWithConfig("ck", "cs", server.URL)

	_, err := client.CreateBlock(context.Background(), testCreds, "9")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Payload, "162")
}

func TestNewClientRequiresConsumerPair(t *testing.T) {
	t.Setenv("TWITTER_CONSUMER_KEY", "")
	t.Setenv("TWITTER_CONSUMER_SECRET", "")

	_, err := NewClient()
	require.Error(t, err)
}
