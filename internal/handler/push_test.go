package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"testing"

	"github.com/dukerupert/taskcal/internal/model"
	"github.com/dukerupert/taskcal/internal/push"
)

type recordingSender struct {
	endpoints []string
}

func (r *recordingSender) Send(sub *model.PushSubscription, _ push.Payload) error {
	r.endpoints = append(r.endpoints, sub.Endpoint)
	return nil
}

func TestPushSubscriptions(t *testing.T) {
	e := setupHandlerTest(t)
	sender := &recordingSender{}
	h := NewPushHandler(e.pushes, "public-key", push.NewNotifier(sender, e.pushes, slog.Default()), slog.Default())

	rec := serve(h.VAPIDKey, request(http.MethodGet, "/api/push/vapid-key", nil, e.ana))
	expectStatus(t, rec, http.StatusOK)
	if got := decode[map[string]string](t, rec)["public_key"]; got != "public-key" {
		t.Errorf("public_key = %q", got)
	}

	rec = serve(h.Subscribe, request(http.MethodPost, "/api/push/subscriptions", map[string]string{"endpoint": "https://push/ana"}, e.ana))
	expectStatus(t, rec, http.StatusBadRequest)

	body := map[string]string{"endpoint": "https://push/ana", "p256dh": "k", "auth": "a", "device_name": "Phone"}
	rec = serve(h.Subscribe, request(http.MethodPost, "/api/push/subscriptions", body, e.ana))
	expectStatus(t, rec, http.StatusCreated)
	sub := decode[model.PushSubscription](t, rec)
	if sub.UserID != e.ana.ID || sub.DeviceName != "Phone" {
		t.Errorf("sub = %+v", sub)
	}

	rec = serve(h.List, request(http.MethodGet, "/api/push/subscriptions", nil, e.bob))
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]model.PushSubscription](t, rec); len(got) != 0 {
		t.Errorf("bob sees %d subscriptions, want 0", len(got))
	}

	rec = serve(h.Test, request(http.MethodPost, "/api/push/test", nil, e.ana))
	expectStatus(t, rec, http.StatusOK)
	if got := decode[map[string]int](t, rec)["sent"]; got != 1 || len(sender.endpoints) != 1 {
		t.Errorf("sent = %d, endpoints = %v", got, sender.endpoints)
	}

	id := strconv.FormatInt(sub.ID, 10)
	rec = serve(h.Unsubscribe, request(http.MethodDelete, "/api/push/subscriptions/"+id, nil, e.bob, "id", id))
	expectStatus(t, rec, http.StatusNotFound)
	rec = serve(h.Unsubscribe, request(http.MethodDelete, "/api/push/subscriptions/"+id, nil, e.ana, "id", id))
	expectStatus(t, rec, http.StatusNoContent)
	rec = serve(h.Unsubscribe, request(http.MethodDelete, "/api/push/subscriptions/x", nil, e.ana, "id", "x"))
	expectStatus(t, rec, http.StatusBadRequest)
}
