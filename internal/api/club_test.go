package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"clube_beneficios/internal/domain"
	"clube_beneficios/internal/reconcile"
	"clube_beneficios/internal/service"
	"clube_beneficios/internal/testutil"
	"clube_beneficios/internal/whatsapp"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClubPermissions(t *testing.T) {
	e := newEnv(t)
	faq := map[string]any{"question": "Como resgatar?", "answer": "Pelo app.", "category": "Cashback"}

	w := e.do(http.MethodPost, "/api/club/faqs", e.adminToken(domain.ClubRoleViewer), faq)
	assert.Equal(t, http.StatusForbidden, w.Code)

	u := testutil.CreateUser(t, e.tdb, "u@acme.io", domain.RoleUser, nil)
	w = e.do(http.MethodGet, "/api/club/users", e.userToken(u), nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "users are not club admins")

	// A token from another club cannot reach this one
	owner := e.adminToken(domain.ClubRoleOwner)
	var ownerRow domain.ClubAdmin
	require.NoError(t, e.master.Where("role = ? AND club_id = ?", domain.ClubRoleOwner, e.club.ID).First(&ownerRow).Error)
	other := testutil.Token(t, ownerRow.ID, domain.RoleClubAdmin, e.club.ID+100, domain.ClubRoleOwner)
	w = e.do(http.MethodGet, "/api/club/users", other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Removing the admin revokes a token that has not expired yet
	w = e.do(http.MethodGet, "/api/club/users", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, e.master.Delete(&ownerRow).Error)
	w = e.do(http.MethodGet, "/api/club/users", owner, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = e.do(http.MethodGet, "/api/whatsapp-messages/history", owner, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestFAQManagement(t *testing.T) {
	e := newEnv(t)
	admin := e.adminToken(domain.ClubRoleManager)
	u := testutil.CreateUser(t, e.tdb, "u@acme.io", domain.RoleUser, nil)

	w := e.do(http.MethodPost, "/api/club/faqs", admin, map[string]any{"question": "Sem resposta?"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/club/faqs", admin, map[string]any{"question": "Como resgatar?", "answer": "Pelo app.", "category": "Cashback"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		FAQ domain.FAQ `json:"faq"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	w = e.do(http.MethodPost, "/api/club/faqs", admin, map[string]any{"question": "Rascunho?", "answer": "Ainda não.", "published": false})
	require.Equal(t, http.StatusCreated, w.Code)

	type faqList struct {
		FAQs []domain.FAQ `json:"faqs"`
	}
	w = e.do(http.MethodGet, "/api/faqs", e.userToken(u), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[faqList](t, w).FAQs, 1, "drafts are hidden from users")
	w = e.do(http.MethodGet, "/api/faqs?category=cashback", e.userToken(u), nil)
	assert.Len(t, decode[faqList](t, w).FAQs, 1)
	w = e.do(http.MethodGet, "/api/club/faqs", admin, nil)
	assert.Len(t, decode[faqList](t, w).FAQs, 2)

	path := fmt.Sprintf("/api/club/faqs/%d", created.FAQ.ID)
	w = e.do(http.MethodPut, path, admin, map[string]any{"answer": "No app, em Carteira."})
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodDelete, path, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodDelete, path, admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotifications(t *testing.T) {
	e := newEnv(t)
	admin := e.adminToken(domain.ClubRoleOwner)
	ana := testutil.CreateUser(t, e.tdb, "ana@acme.io", domain.RoleUser, nil)
	bob := testutil.CreateUser(t, e.tdb, "bob@acme.io", domain.RoleUser, nil)

	w := e.do(http.MethodPost, "/api/club/notifications", admin, NotificationRequest{Title: "Promo", Body: "Cashback em dobro", SendEmail: true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"emails_queued":2`)
	e.drainMail()
	assert.Len(t, e.mailer.sent, 2)
	for _, m := range e.mailer.sent {
		assert.Len(t, m.To, 1, "one message per recipient")
	}
	var promo domain.Notification
	require.NoError(t, e.tdb.Where("title = ?", "Promo").First(&promo).Error)
	assert.True(t, promo.EmailSent, "flagged once every address was accepted")

	w = e.do(http.MethodPost, "/api/club/notifications", admin, NotificationRequest{Title: "Só pra Ana", UserID: &ana.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"emails_queued":0`)
	e.drainMail()
	assert.Len(t, e.mailer.sent, 2, "no email requested")

	w = e.do(http.MethodPost, "/api/club/notifications", admin, NotificationRequest{Title: "Bob", Body: "Oi", UserID: &bob.ID, SendEmail: true})
	require.Equal(t, http.StatusCreated, w.Code)
	e.drainMail()
	require.Len(t, e.mailer.sent, 3)
	assert.Equal(t, []string{"bob@acme.io"}, e.mailer.sent[2].To)

	w = e.do(http.MethodPost, "/api/club/notifications", admin, NotificationRequest{Title: "Ninguém", UserID: ptr(uint(999))})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodGet, "/api/notifications", e.userToken(ana), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), decode[Paged[domain.Notification]](t, w).Total)
	w = e.do(http.MethodGet, "/api/notifications", e.userToken(bob), nil)
	assert.Equal(t, int64(2), decode[Paged[domain.Notification]](t, w).Total)

	w = e.do(http.MethodGet, "/api/club/notifications", e.adminToken(domain.ClubRoleViewer), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(3), decode[Paged[domain.Notification]](t, w).Total)
}

func seedPurchases(t *testing.T, e *env) {
	t.Helper()
	merchant := testutil.CreateUser(t, e.tdb, "shop@acme.io", domain.RoleMerchant, nil)
	buyer := testutil.CreateUser(t, e.tdb, "buyer@acme.io", domain.RoleUser, nil)
	product := testutil.CreateProduct(t, e.tdb, merchant.ID, "20.00", "10", 10)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := service.CreatePurchase(ctx, e.tdb, buyer.ID, product.ID, 1, true)
		require.NoError(t, err)
	}
	p, err := service.CreatePurchase(ctx, e.tdb, buyer.ID, product.ID, 1, true)
	require.NoError(t, err)
	_, err = service.CancelPurchase(ctx, e.tdb, p.ID)
	require.NoError(t, err)
}

func TestPurchasesReport(t *testing.T) {
	e := newEnv(t)
	seedPurchases(t, e)
	viewer := e.adminToken(domain.ClubRoleViewer)

	w := e.do(http.MethodGet, "/api/club/reports/purchases", viewer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report struct {
		Summary   []StatusSummary  `json:"summary"`
		Purchases Paged[ReportRow] `json:"purchases"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Len(t, report.Summary, 2)
	assert.Equal(t, domain.PurchaseCancelled, report.Summary[0].Status)
	assert.Equal(t, int64(1), report.Summary[0].Count)
	assert.Equal(t, domain.PurchaseCompleted, report.Summary[1].Status)
	assert.Equal(t, int64(3), report.Summary[1].Count)
	assert.True(t, report.Summary[1].Total.Decimal.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, int64(4), report.Purchases.Total)
	require.NotEmpty(t, report.Purchases.Items)
	assert.Equal(t, "buyer@acme.io", report.Purchases.Items[0].UserEmail)

	w = e.do(http.MethodGet, "/api/club/reports/purchases?from=yesterday", viewer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(http.MethodGet, "/api/club/reports/purchases?from=2024-02-01&to=2024-01-01", viewer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportPurchasesCSV(t *testing.T) {
	e := newEnv(t)
	seedPurchases(t, e)

	w := e.do(http.MethodGet, "/api/club/reports/purchases.csv", e.adminToken(domain.ClubRoleViewer), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "purchases-acme-")

	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "buyer@acme.io", records[1][3])
	assert.Equal(t, "20.00", records[1][8])
	assert.Equal(t, "2.00", records[1][9])
}

func TestStakeAndExchangeContracts(t *testing.T) {
	e := newEnv(t)
	manager := e.adminToken(domain.ClubRoleManager)
	u := testutil.CreateUser(t, e.tdb, "u@acme.io", domain.RoleUser, nil)
	addr := "0x" + strings.Repeat("ab", 20)

	w := e.do(http.MethodPost, "/api/club/stake-contracts", manager, map[string]any{"name": "CDB", "income_type": "fixed"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "fixed income needs a rate")
	w = e.do(http.MethodPost, "/api/club/stake-contracts", manager, map[string]any{"name": "Pós", "income_type": "variable", "cdi_percent": "110", "address": "0x12"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "bad address")

	w = e.do(http.MethodPost, "/api/club/stake-contracts", manager, map[string]any{"name": "Pós", "income_type": "variable", "cdi_percent": "110", "address": addr, "lock_days": 30})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sc struct {
		StakeContract domain.StakeContract `json:"stake_contract"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sc))
	w = e.do(http.MethodPost, "/api/club/stake-contracts", manager, map[string]any{"name": "Pré", "income_type": "fixed", "annual_rate": "12.5"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(http.MethodPut, fmt.Sprintf("/api/club/stake-contracts/%d", sc.StakeContract.ID), manager, map[string]any{"active": false})
	require.Equal(t, http.StatusOK, w.Code)

	type stakeList struct {
		Items []domain.StakeContract `json:"stake_contracts"`
	}
	w = e.do(http.MethodGet, "/api/stake-contracts", e.userToken(u), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[stakeList](t, w).Items, 1, "inactive contracts are hidden")
	w = e.do(http.MethodGet, "/api/club/stake-contracts", manager, nil)
	assert.Len(t, decode[stakeList](t, w).Items, 2)

	w = e.do(http.MethodPost, "/api/club/exchange-contracts", manager, ExchangeContractRequest{Name: "BRLx", Address: strings.ToUpper(addr[2:])})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(http.MethodPost, "/api/club/exchange-contracts", manager, ExchangeContractRequest{Name: "BRLx", Address: addr})
	require.Equal(t, http.StatusCreated, w.Code)
	var ec struct {
		ExchangeContract domain.ExchangeContract `json:"exchange_contract"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ec))
	w = e.do(http.MethodPost, "/api/club/exchange-contracts", manager, ExchangeContractRequest{Name: "BRLx", Address: addr})
	assert.Equal(t, http.StatusConflict, w.Code)

	order := map[string]any{"contract_id": ec.ExchangeContract.ID, "onchain_id": 7, "side": "buy", "amount": "100", "price": "5.2"}
	w = e.do(http.MethodPost, "/api/exchange-orders", e.userToken(u), order)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = e.do(http.MethodPost, "/api/exchange-orders", e.userToken(u), order)
	assert.Equal(t, http.StatusConflict, w.Code)
	order["side"] = "hold"
	order["onchain_id"] = 8
	w = e.do(http.MethodPost, "/api/exchange-orders", e.userToken(u), order)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodGet, "/api/exchange-orders?status=open", e.userToken(u), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[Paged[domain.ExchangeOrder]](t, w).Total)
}

type staticReader map[uint64]domain.ExchangeOrderStatus

func (r staticReader) OrderStatus(_ context.Context, _ string, id uint64) (domain.ExchangeOrderStatus, error) {
	if s, ok := r[id]; ok {
		return s, nil
	}
	return "", errors.New("unknown order")
}

func TestSyncOrdersWithoutRPC(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/api/club/exchange-orders/sync", e.adminToken(domain.ClubRoleOwner), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSyncOrders(t *testing.T) {
	e := newEnv(t, withSyncer(reconcile.NewSyncer(staticReader{1: domain.OrderFilled}, nil)))
	ec := domain.ExchangeContract{Name: "BRLx", Address: "0x" + strings.Repeat("cd", 20), Active: true}
	require.NoError(t, e.tdb.Create(&ec).Error)
	require.NoError(t, e.tdb.Create(&domain.ExchangeOrder{ContractID: ec.ID, OnchainID: 1, Status: domain.OrderOpen}).Error)
	require.NoError(t, e.tdb.Create(&domain.ExchangeOrder{ContractID: ec.ID, OnchainID: 2, Status: domain.OrderOpen}).Error)

	w := e.do(http.MethodPost, "/api/club/exchange-orders/sync", e.adminToken(domain.ClubRoleViewer), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPost, "/api/club/exchange-orders/sync", e.adminToken(domain.ClubRoleManager), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Result reconcile.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, reconcile.Result{Contracts: 1, Checked: 2, Updated: 1, Failed: 1}, resp.Result)
}

func TestWhatsAppMessages(t *testing.T) {
	var sent atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sent.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.OUT1"}]}`))
	}))
	defer srv.Close()
	e := newEnv(t, withWhatsApp(whatsapp.NewClient(srv.URL, "tok", "123", time.Second)))
	manager := e.adminToken(domain.ClubRoleManager)

	w := e.do(http.MethodPost, "/api/whatsapp-messages", manager, SendWhatsAppRequest{Phone: "12", Body: "oi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(http.MethodPost, "/api/whatsapp-messages", e.adminToken(domain.ClubRoleViewer), SendWhatsAppRequest{Phone: "+55 11 98765-4321", Body: "oi"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPost, "/api/whatsapp-messages", manager, SendWhatsAppRequest{Phone: "+55 11 98765-4321", Body: "Seu cashback chegou"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, int32(1), sent.Load())

	// Provider callbacks for the club
	hook := "/api/webhooks/whatsapp/acme"
	w = e.do(http.MethodGet, hook+"?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=42", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())
	w = e.do(http.MethodGet, hook+"?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	payload := `{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages","value":{
		"messages":[{"from":"5511987654321","id":"wamid.IN1","timestamp":"1700000000","type":"text","text":{"body":"Obrigado!"}}],
		"statuses":[{"id":"wamid.OUT1","status":"read","timestamp":"1700000001"}]}}]}]}`
	w = e.do(http.MethodPost, hook, "", payload)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "unsigned delivery")
	w = e.do(http.MethodPost, hook, "", payload, whatsapp.SignatureHeader, whatsapp.SignatureHeaderValue("wrong-secret", []byte(payload)))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "foreign signature")
	var stored int64
	require.NoError(t, e.tdb.Model(&domain.WhatsAppMessage{}).Where("direction = ?", domain.DirectionInbound).Count(&stored).Error)
	assert.Zero(t, stored)

	w = e.do(http.MethodPost, hook, "", payload, signed(payload)...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"received":1}`, w.Body.String())
	w = e.do(http.MethodPost, hook, "", payload, signed(payload)...)
	assert.JSONEq(t, `{"received":0}`, w.Body.String(), "redelivery is ignored")
	w = e.do(http.MethodPost, hook, "", `{"object":"page"}`, signed(`{"object":"page"}`)...)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodGet, "/api/whatsapp-messages/history?phone=5511987654321", manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[Paged[domain.WhatsAppMessage]](t, w)
	require.Len(t, history.Items, 2)
	byDirection := map[string]domain.WhatsAppMessage{}
	for _, m := range history.Items {
		byDirection[m.Direction] = m
	}
	assert.Equal(t, "read", byDirection[domain.DirectionOutbound].Status)
	assert.Equal(t, "Obrigado!", byDirection[domain.DirectionInbound].Body)
}

func TestWhatsAppDisabled(t *testing.T) {
	e := newEnv(t)
	e.club.WhatsAppEnabled = false
	require.NoError(t, e.master.Save(e.club).Error)

	w := e.do(http.MethodGet, "/api/whatsapp-messages/history", e.adminToken(domain.ClubRoleOwner), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = e.do(http.MethodGet, "/api/webhooks/whatsapp/acme?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=1", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
