package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttioClientUpsertContact(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/objects/people/records", r.URL.Path)
		assert.Equal(t, "email_addresses", r.URL.Query().Get("matching_attribute"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": {"id": {"record_id": "rec-123"}}}`)
	}))
	defer server.Close()

	c := NewAttioClient("attio-key", server.URL)

	result, err := c.UpsertContact(context.Background(), ContactIdentity{
		Email: "lead@example.com",
		Name:  "Lead Example",
	}, map[string]interface{}{"source": "webform"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer attio-key", gotAuth)

	data := gotBody["data"].(map[string]interface{})
	values := data["values"].(map[string]interface{})
	assert.Equal(t, []interface{}{"lead@example.com"}, values["email_addresses"])
	assert.Equal(t, "Lead Example", values["name"])
	assert.Equal(t, "webform", values["source"])

	assert.Contains(t, result, "data")
}

func TestAttioClientErrorMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message": "invalid API key"}`)
	}))
	defer server.Close()

	c := NewAttioClient("bad-key", server.URL)

	_, err := c.UpdateContactStatus(context.Background(), "lead@example.com", "qualified")
	require.Error(t, err)

	var provErr *ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, http.StatusUnauthorized, provErr.StatusCode)
	assert.Contains(t, provErr.Error(), "invalid API key")
	assert.False(t, provErr.Transient())
}

func TestProviderErrorTransient(t *testing.T) {
	assert.True(t, (&ProviderError{StatusCode: 429}).Transient())
	assert.True(t, (&ProviderError{StatusCode: 503}).Transient())
	assert.False(t, (&ProviderError{StatusCode: 404}).Transient())
	assert.False(t, (&ProviderError{StatusCode: 400}).Transient())
}

func TestAttioClientTransportError(t *testing.T) {
	// Closed server: connection refused
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := NewAttioClient("key", server.URL)
	_, err := c.UpsertContact(context.Background(), ContactIdentity{Email: "a@b.c"}, nil)
	require.Error(t, err)

	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestBrevoClientSubscribeContact(t *testing.T) {
	var gotKey string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/contacts", r.URL.Path)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 42}`)
	}))
	defer server.Close()

	c := NewBrevoClient("brevo-key", server.URL)

	result, err := c.SubscribeContact(context.Background(), ContactIdentity{
		Email: "lead@example.com",
		Name:  "Lead",
	}, "list-7")
	require.NoError(t, err)

	assert.Equal(t, "brevo-key", gotKey)
	assert.Equal(t, "lead@example.com", gotBody["email"])
	assert.Equal(t, true, gotBody["updateEnabled"])
	assert.Equal(t, []interface{}{"list-7"}, gotBody["listIds"])
	assert.Equal(t, float64(42), result["id"])
}

func TestSlackClientNotify(t *testing.T) {
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	c := NewSlackClient(server.URL)
	require.NoError(t, c.Notify(context.Background(), "run finished"))
	assert.Equal(t, "run finished", gotBody["text"])
}

func TestTestConnection(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/self", r.URL.Path)
			fmt.Fprint(w, `{"active": true}`)
		}))
		defer server.Close()

		status := NewAttioClient("key", server.URL).TestConnection(context.Background())
		assert.True(t, status.OK)
		assert.Empty(t, status.Detail)
	})

	t.Run("BadKey", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		status := NewBrevoClient("key", server.URL).TestConnection(context.Background())
		assert.False(t, status.OK)
		assert.NotEmpty(t, status.Detail)
	})
}

type fakeIMAPSession struct {
	loginErr  error
	loggedOut bool
}

func (f *fakeIMAPSession) Login(username, password string) error { return f.loginErr }
func (f *fakeIMAPSession) Logout() error                         { f.loggedOut = true; return nil }

func TestMailboxClientTestConnection(t *testing.T) {
	config := MailboxConfig{
		SMTPHost: "smtp.example.com", SMTPPort: 587,
		IMAPHost: "imap.example.com", IMAPPort: 993,
		Username: "bot@example.com", From: "bot@example.com",
	}

	t.Run("LoginOK", func(t *testing.T) {
		session := &fakeIMAPSession{}
		c := NewMailboxClient(config, "app-password")
		c.dialIMAP = func(addr string) (imapSession, error) {
			assert.Equal(t, "imap.example.com:993", addr)
			return session, nil
		}

		status := c.TestConnection(context.Background())
		assert.True(t, status.OK)
		assert.True(t, session.loggedOut)
	})

	t.Run("LoginRejected", func(t *testing.T) {
		c := NewMailboxClient(config, "wrong-password")
		c.dialIMAP = func(addr string) (imapSession, error) {
			return &fakeIMAPSession{loginErr: errors.New("authentication failed")}, nil
		}

		status := c.TestConnection(context.Background())
		assert.False(t, status.OK)
		assert.Contains(t, status.Detail, "login rejected")
	})

	t.Run("DialFailed", func(t *testing.T) {
		c := NewMailboxClient(config, "pw")
		c.dialIMAP = func(addr string) (imapSession, error) {
			return nil, errors.New("connection refused")
		}

		status := c.TestConnection(context.Background())
		assert.False(t, status.OK)
	})
}
