package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	p, err := NormalizePhone("+55 (11) 98765-4321")
	require.NoError(t, err)
	assert.Equal(t, "5511987654321", p)

	for _, bad := range []string{"", "123", "0011987654321", "5511987654321999"} {
		_, err := NormalizePhone(bad)
		assert.ErrorIs(t, err, ErrInvalidPhone, bad)
	}
}

func TestSendText(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.ABC"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", "12345", time.Second)
	id, err := c.SendText(context.Background(), "+55 11 98765-4321", "Seu cashback chegou")
	require.NoError(t, err)
	assert.Equal(t, "wamid.ABC", id)
	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "5511987654321", got.To)
	assert.Equal(t, "Seu cashback chegou", got.Text.Body)
}

func TestSendText_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid parameter","code":100}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tok", "12345", time.Second).SendText(context.Background(), "5511987654321", "oi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid parameter")
}

func TestSendText_Guards(t *testing.T) {
	_, err := NewClient("http://unused", "", "12345", time.Second).SendText(context.Background(), "5511987654321", "oi")
	assert.ErrorIs(t, err, ErrNotConfigured)

	c := NewClient("http://unused", "tok", "12345", time.Second)
	_, err = c.SendText(context.Background(), "5511987654321", "  ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, err = c.SendText(context.Background(), "abc", "oi")
	assert.ErrorIs(t, err, ErrInvalidPhone)
}

func TestVerifyChallenge(t *testing.T) {
	got, err := VerifyChallenge("subscribe", "secret", "1158201444", "secret")
	require.NoError(t, err)
	assert.Equal(t, "1158201444", got)

	_, err = VerifyChallenge("subscribe", "wrong", "1", "secret")
	assert.ErrorIs(t, err, ErrVerifyFailed)
	_, err = VerifyChallenge("unsubscribe", "secret", "1", "secret")
	assert.ErrorIs(t, err, ErrVerifyFailed)
	_, err = VerifyChallenge("subscribe", "", "1", "")
	assert.ErrorIs(t, err, ErrVerifyFailed)
}

const samplePayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "messages": [
          {"from": "5511987654321", "id": "wamid.IN1", "timestamp": "1700000000", "type": "text", "text": {"body": "Qual meu saldo?"}},
          {"from": "5511987654321", "id": "wamid.IN2", "timestamp": "1700000001", "type": "image"}
        ],
        "statuses": [{"id": "wamid.OUT1", "status": "delivered", "timestamp": "1700000002"}]
      }
    }]
  }]
}`

func TestParseWebhook(t *testing.T) {
	msgs, statuses, err := ParseWebhook([]byte(samplePayload))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Qual meu saldo?", msgs[0].Body)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), msgs[0].ReceivedAt)
	assert.Equal(t, "image", msgs[1].Type)
	assert.Empty(t, msgs[1].Body)
	require.Len(t, statuses, 1)
	assert.Equal(t, "delivered", statuses[0].Status)

	_, _, err = ParseWebhook([]byte(`{"object":"page"}`))
	assert.Error(t, err)
	_, _, err = ParseWebhook([]byte(`not json`))
	assert.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(samplePayload)
	header := SignatureHeaderValue("app-secret", body)

	assert.NoError(t, VerifySignature("app-secret", header, body))
	assert.ErrorIs(t, VerifySignature("other-secret", header, body), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("app-secret", header, append(body, ' ')), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("app-secret", "", body), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("app-secret", "sha256=zz", body), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("app-secret", header[len("sha256="):], body), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("", header, body), ErrNotConfigured)
}
