package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okMsg = Message{To: []string{"ana@example.com"}, Subject: "Bem-vindo", Text: "Olá"}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		ok   bool
	}{
		{"valid", okMsg, true},
		{"no recipients", Message{Subject: "s", Text: "t"}, false},
		{"bad recipient", Message{To: []string{"nope"}, Subject: "s", Text: "t"}, false},
		{"empty subject", Message{To: []string{"a@b.co"}, Text: "t"}, false},
		{"empty body", Message{To: []string{"a@b.co"}, Subject: "s"}, false},
		{"html only", Message{To: []string{"a@b.co"}, Subject: "s", HTML: "<p>x</p>"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidMessage)
			}
		})
	}
}

func TestNew(t *testing.T) {
	m, err := New(Options{Provider: "log"})
	require.NoError(t, err)
	assert.NoError(t, m.Send(context.Background(), okMsg))

	_, err = New(Options{Provider: "resend"})
	assert.Error(t, err, "api key required")

	_, err = New(Options{Provider: "pigeon", APIKey: "k"})
	assert.Error(t, err)
}

func TestResend(t *testing.T) {
	var got resendEmail
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"abc"}`))
	}))
	defer srv.Close()

	m, err := New(Options{Provider: "resend", APIKey: "re_key", From: "clube@example.com", BaseURL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, m.Send(context.Background(), okMsg))
	assert.Equal(t, "clube@example.com", got.From)
	assert.Equal(t, []string{"ana@example.com"}, got.To)
	assert.Equal(t, "Bem-vindo", got.Subject)
}

func TestSendGrid(t *testing.T) {
	var got sgMail
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m, err := New(Options{Provider: "sendgrid", APIKey: "SG.key", From: "clube@example.com", BaseURL: srv.URL})
	require.NoError(t, err)
	msg := okMsg
	msg.HTML = "<p>Olá</p>"
	require.NoError(t, m.Send(context.Background(), msg))

	require.Len(t, got.Personalizations, 1)
	assert.Equal(t, "ana@example.com", got.Personalizations[0].To[0].Email)
	require.Len(t, got.Content, 2)
	assert.Equal(t, "text/plain", got.Content[0].Type)
	assert.Equal(t, "text/html", got.Content[1].Type)
}

func TestProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid key"}`))
	}))
	defer srv.Close()

	m, err := New(Options{Provider: "resend", APIKey: "bad", BaseURL: srv.URL})
	require.NoError(t, err)
	err = m.Send(context.Background(), okMsg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSend_InvalidMessageNeverReachesProvider(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	m, err := New(Options{Provider: "resend", APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.ErrorIs(t, m.Send(context.Background(), Message{}), ErrInvalidMessage)
	assert.False(t, called)
}
