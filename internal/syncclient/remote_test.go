package syncclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waypoint/internal/api"
	"github.com/roach88/waypoint/internal/session"
)

func TestHTTPRemote_DecodesErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"MISSING_FLAGS","error":"required flags missing","missing":["a","b"]}`))
	}))
	defer ts.Close()

	_, err := NewHTTPRemote(ts.URL+"/", time.Second).Session(context.Background(), api.SessionRequest{})
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
	assert.False(t, IsTransient(err))
	assert.Equal(t, []string{"a", "b"}, MissingFlags(err))

	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, api.CodeMissingFlags, re.Code)
	assert.Contains(t, err.Error(), "409")
}

func TestHTTPRemote_ServerErrorIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := NewHTTPRemote(ts.URL, time.Second).Status(context.Background())
	assert.True(t, IsTransient(err))
	assert.False(t, IsCredentialRejected(err))
}

func TestHTTPRemote_NetworkErrorIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := NewHTTPRemote(url, time.Second).Status(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "unreachable")
}

func TestPredicates_IgnoreForeignErrors(t *testing.T) {
	err := errors.New("plain")
	assert.False(t, IsCredentialRejected(err))
	assert.False(t, IsNotFound(err))
	assert.False(t, IsPrecondition(err))
	assert.False(t, IsTransient(err))
	assert.Nil(t, MissingFlags(err))
}

func TestCredentials(t *testing.T) {
	var c Credentials
	_, _, ok := c.Get()
	assert.False(t, ok)

	c.Evict("Ash")
	assert.Equal(t, "Ash", c.Pending())

	c.Set(session.Profile{ID: "p1", TrainerName: "Ash"}, "1234")
	p, pin, ok := c.Get()
	assert.True(t, ok)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "1234", pin)
	assert.Empty(t, c.Pending())

	c.Clear()
	_, _, ok = c.Get()
	assert.False(t, ok)
	assert.Empty(t, c.Pending())
}
