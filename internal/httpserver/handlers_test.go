package httpserver

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"rsvpdash/internal/delivery"
	"rsvpdash/internal/domain"
	"rsvpdash/internal/report"
	"rsvpdash/internal/scheduler"
	"rsvpdash/internal/service"
	"rsvpdash/internal/statuscallback"
	"rsvpdash/internal/store/memory"
)

const (
	webhookToken = "hook-secret"
	webhookURL   = "https://dash.test/v1/webhooks/status"
)

type testServer struct {
	router *Server
	clock  *scheduler.Manual
	store  *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := memory.New()
	clock := scheduler.NewManual(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	sim := &delivery.Simulator{Store: st, Sched: clock, DeliveryLatency: time.Second, ReadLatency: time.Second}
	messaging := &service.MessagingService{Store: st, Sender: sim, Now: clock.Now}

	s := New()
	api := &API{
		Events:    &service.EventService{Store: st, RSVPBaseURL: "https://rsvp.test", Now: clock.Now},
		Contacts:  &service.ContactService{Store: st, Now: clock.Now},
		Messaging: messaging,
		RSVPs:     &service.RSVPService{Store: st, Now: clock.Now},
		Reports:   &service.ReportService{Store: st, Now: clock.Now},
	}
	api.Register(s.Mux)
	hook := &Webhook{Messages: messaging, VerifySignature: statuscallback.Verify, Token: webhookToken, PublicURL: webhookURL}
	hook.Register(s.Mux)
	return &testServer{router: s, clock: clock, store: st}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	ts.router.Mux.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

func (ts *testServer) seedEventWithList(t *testing.T) (domain.Event, domain.ContactList) {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/v1/events", map[string]string{
		"name": "gala", "eventName": "Gala", "date": "2024-05-01", "location": "Hall A",
	})
	expectStatus(t, rr, http.StatusCreated)
	ev := decode[domain.Event](t, rr)

	rr = ts.do(t, http.MethodPost, "/v1/lists", map[string]any{"name": "VIP", "tags": []string{"vip"}})
	expectStatus(t, rr, http.StatusCreated)
	l := decode[domain.ContactList](t, rr)

	rr = ts.do(t, http.MethodPost, "/v1/lists/1/import", "name,phone,email\nSam,+15550100,sam@example.com\nAlex,+15550101,\nBad,,\n")
	expectStatus(t, rr, http.StatusCreated)
	res := decode[service.ImportResult](t, rr)
	if len(res.Imported) != 2 || res.Skipped != 1 {
		t.Fatalf("unexpected import result %+v", res)
	}

	rr = ts.do(t, http.MethodPost, "/v1/events/1/lists", map[string]any{"listIds": []int64{l.ID}})
	expectStatus(t, rr, http.StatusOK)
	return ev, l
}

func TestEventEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/v1/events", map[string]string{"name": "x", "date": "2024-01-01"})
	expectStatus(t, rr, http.StatusBadRequest)
	if !strings.Contains(rr.Body.String(), "location") {
		t.Fatalf("expected missing field in body, got %q", rr.Body.String())
	}
	expectStatus(t, ts.do(t, http.MethodPost, "/v1/events", "{not json"), http.StatusBadRequest)
	expectStatus(t, ts.do(t, http.MethodGet, "/v1/events/99", nil), http.StatusNotFound)

	ev, l := ts.seedEventWithList(t)
	if ev.RSVPFormURL != "https://rsvp.test/1" || ev.Status != domain.EventDraft {
		t.Fatalf("unexpected event %+v", ev)
	}

	rr = ts.do(t, http.MethodPatch, "/v1/events/1", map[string]string{"status": "active"})
	expectStatus(t, rr, http.StatusOK)
	if got := decode[domain.Event](t, rr); got.Status != domain.EventActive || len(got.ContactListIDs) != 1 {
		t.Fatalf("unexpected patched event %+v", got)
	}
	expectStatus(t, ts.do(t, http.MethodPatch, "/v1/events/1", map[string]string{"status": "archived"}), http.StatusBadRequest)

	rr = ts.do(t, http.MethodGet, "/v1/events/1/available-lists", nil)
	expectStatus(t, rr, http.StatusOK)
	if lists := decode[[]domain.ContactList](t, rr); len(lists) != 0 {
		t.Fatalf("expected no available lists, got %+v", lists)
	}

	rr = ts.do(t, http.MethodPut, "/v1/events/1/reminders", domain.ReminderSettings{MaxReminders: 2, MaxDurationValue: 2, MaxDurationType: "days"})
	expectStatus(t, rr, http.StatusOK)
	rr = ts.do(t, http.MethodGet, "/v1/events/1/reminders", nil)
	if rs := decode[domain.ReminderSettings](t, rr); rs.MaxReminders != 2 || rs.MaxDurationType != "days" {
		t.Fatalf("unexpected reminders %+v", rs)
	}

	expectStatus(t, ts.do(t, http.MethodDelete, "/v1/lists/1", nil), http.StatusNoContent)
	rr = ts.do(t, http.MethodGet, "/v1/events/1", nil)
	if got := decode[domain.Event](t, rr); len(got.ContactListIDs) != 0 {
		t.Fatalf("expected list %d pruned, got %v", l.ID, got.ContactListIDs)
	}
	expectStatus(t, ts.do(t, http.MethodGet, "/v1/lists/1/contacts", nil), http.StatusNotFound)
}

func TestSendReportAndRSVPFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.seedEventWithList(t)

	expectStatus(t, ts.do(t, http.MethodPost, "/v1/events/1/messages", map[string]string{}), http.StatusBadRequest)

	rr := ts.do(t, http.MethodPost, "/v1/events/1/messages", map[string]string{"content": "Hi {Name}: {link}"})
	expectStatus(t, rr, http.StatusAccepted)
	res := decode[domain.SendResult](t, rr)
	if len(res.Messages) != 2 || res.Messages[1].Content != "Hi Alex: https://rsvp.test/1" {
		t.Fatalf("unexpected send result %+v", res)
	}

	rr = ts.do(t, http.MethodGet, "/v1/reports?status=sent", nil)
	expectStatus(t, rr, http.StatusOK)
	if rows := decode[[]report.Row](t, rr); len(rows) != 2 {
		t.Fatalf("expected 2 sent rows, got %+v", rows)
	}

	rr = ts.do(t, http.MethodPost, "/v1/rsvps", map[string]any{"eventId": 1, "phone": "+15550100", "response": "yes"})
	expectStatus(t, rr, http.StatusCreated)
	rr = ts.do(t, http.MethodPost, "/v1/rsvps", map[string]any{"eventId": 1, "phone": "+15550100", "response": "no", "notes": "sorry"})
	expectStatus(t, rr, http.StatusOK)

	rr = ts.do(t, http.MethodGet, "/v1/reports?rsvp=no&search=sam", nil)
	if rows := decode[[]report.Row](t, rr); len(rows) != 1 || rows[0].RSVPNotes != "sorry" {
		t.Fatalf("expected sam to have declined, got %+v", rows)
	}

	ts.clock.Advance(10 * time.Second)
	rr = ts.do(t, http.MethodGet, "/v1/reports/stats", nil)
	expectStatus(t, rr, http.StatusOK)
	if st := decode[report.Stats](t, rr); st.Total != 2 || st.Delivered != 2 || st.Responded != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}

	rr = ts.do(t, http.MethodGet, "/v1/messages?search=alex", nil)
	if rows := decode[[]map[string]any](t, rr); len(rows) != 1 || rows[0]["eventName"] != "Gala" {
		t.Fatalf("unexpected message rows %+v", rows)
	}
	expectStatus(t, ts.do(t, http.MethodGet, "/v1/messages/1", nil), http.StatusOK)
	expectStatus(t, ts.do(t, http.MethodGet, "/v1/messages/42", nil), http.StatusNotFound)
}

func TestReportExportEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.seedEventWithList(t)
	ts.do(t, http.MethodPost, "/v1/rsvps", map[string]any{"eventId": 1, "phone": "+15550101", "response": "maybe", "notes": `said "probably"`})

	rr := ts.do(t, http.MethodGet, "/v1/reports/export?statuses=maybe,no", nil)
	expectStatus(t, rr, http.StatusOK)
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "rsvp-report-maybe-no-") {
		t.Fatalf("unexpected disposition %q", cd)
	}
	records, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if len(records) != 2 || records[1][0] != "Alex" || records[1][7] != `said "probably"` {
		t.Fatalf("unexpected records %v", records)
	}

	rr = ts.do(t, http.MethodGet, "/v1/reports/export?search=sam&rsvp=no", nil)
	expectStatus(t, rr, http.StatusOK)
	records, err = csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected report filters ignored by export, got %v", records)
	}

	expectStatus(t, ts.do(t, http.MethodGet, "/v1/reports/export?format=xlsx", nil), http.StatusBadRequest)

	rr = ts.do(t, http.MethodGet, "/v1/events/1/rsvps/export", nil)
	expectStatus(t, rr, http.StatusOK)
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("unexpected content type %q", rr.Header().Get("Content-Type"))
	}
}

func TestContactEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.seedEventWithList(t)

	rr := ts.do(t, http.MethodGet, "/v1/contacts?search=alex", nil)
	expectStatus(t, rr, http.StatusOK)
	if rows := decode[[]report.Row](t, rr); len(rows) != 1 || rows[0].MessageStatus != domain.StatusPending {
		t.Fatalf("unexpected contact rows %+v", rows)
	}

	expectStatus(t, ts.do(t, http.MethodDelete, "/v1/contacts/2", nil), http.StatusNoContent)
	expectStatus(t, ts.do(t, http.MethodGet, "/v1/contacts/2", nil), http.StatusNotFound)
	rr = ts.do(t, http.MethodGet, "/v1/contacts/deleted", nil)
	if deleted := decode[[]domain.Contact](t, rr); len(deleted) != 1 || deleted[0].ID != 2 {
		t.Fatalf("unexpected deleted contacts %+v", deleted)
	}
	rr = ts.do(t, http.MethodGet, "/v1/lists/1", nil)
	if l := decode[domain.ContactList](t, rr); l.ContactCount != 1 {
		t.Fatalf("expected count 1, got %d", l.ContactCount)
	}
	expectStatus(t, ts.do(t, http.MethodPost, "/v1/contacts/2/restore", nil), http.StatusOK)

	rr = ts.do(t, http.MethodPatch, "/v1/contacts/2", map[string]any{"name": "Alex K", "phone": "+1 555 0101"})
	expectStatus(t, rr, http.StatusOK)
	if c := decode[domain.Contact](t, rr); c.Name != "Alex K" || c.Phone != "+1 555 0101" {
		t.Fatalf("unexpected update %+v", c)
	}
	expectStatus(t, ts.do(t, http.MethodPost, "/v1/lists/1/contacts", map[string]string{"name": "No Phone"}), http.StatusBadRequest)
}

func TestImportMultipart(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/v1/lists", map[string]string{"name": "Upload"})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "contacts.csv")
	fw.Write([]byte("name,phone\nJo,+15550102\n"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/lists/1/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	ts.router.Mux.ServeHTTP(rr, req)
	expectStatus(t, rr, http.StatusCreated)
	if res := decode[service.ImportResult](t, rr); len(res.Imported) != 1 {
		t.Fatalf("unexpected import %+v", res)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/lists/1/import", strings.NewReader("junk"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rr = httptest.NewRecorder()
	ts.router.Mux.ServeHTTP(rr, req)
	expectStatus(t, rr, http.StatusBadRequest)
}

func signedCallback(t *testing.T, form url.Values, sig string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(statuscallback.Header, sig)
	return req
}

func TestStatusWebhook(t *testing.T) {
	ts := newTestServer(t)
	ts.seedEventWithList(t)
	ts.do(t, http.MethodPost, "/v1/events/1/messages", map[string]string{"content": "Hi"})

	send := func(form url.Values, sig string) int {
		rr := httptest.NewRecorder()
		ts.router.Mux.ServeHTTP(rr, signedCallback(t, form, sig))
		return rr.Code
	}
	sign := func(form url.Values) string { return statuscallback.Sign(webhookToken, webhookURL, form) }

	failed := url.Values{"MessageId": {"1"}, "MessageStatus": {"undelivered"}, "ErrorMessage": {"carrier blocked"}}
	if code := send(failed, "bogus"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", code)
	}
	if code := send(failed, sign(failed)); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	m, _ := ts.store.GetMessage(context.Background(), 1)
	if m.Status != domain.StatusFailed || m.Error != "carrier blocked" {
		t.Fatalf("unexpected message %+v", m)
	}

	ts.clock.Advance(time.Minute)
	m, _ = ts.store.GetMessage(context.Background(), 1)
	if m.Status != domain.StatusFailed {
		t.Fatalf("simulation overrode callback: %s", m.Status)
	}

	late := url.Values{"MessageId": {"1"}, "MessageStatus": {"delivered"}}
	if code := send(late, sign(late)); code != http.StatusOK {
		t.Fatalf("expected late callback to be accepted and ignored, got %d", code)
	}
	sending := url.Values{"MessageId": {"2"}, "MessageStatus": {"sending"}}
	if code := send(sending, sign(sending)); code != http.StatusOK {
		t.Fatalf("expected intermediate status to be ignored, got %d", code)
	}
	unknown := url.Values{"MessageId": {"99"}, "MessageStatus": {"read"}}
	if code := send(unknown, sign(unknown)); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown message, got %d", code)
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	ts := newTestServer(t)
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_requests_total"}, []string{"endpoint", "status"})
	ts.router.Mux.Use(Metrics(counter))

	ts.do(t, http.MethodGet, "/v1/events/7", nil)
	ts.do(t, http.MethodGet, "/v1/events/8", nil)
	if got := testutil.ToFloat64(counter.WithLabelValues("/v1/events/{id:[0-9]+}", "404")); got != 2 {
		t.Fatalf("expected 2 requests on the route template, got %v", got)
	}
}

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	Healthz()(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	expectStatus(t, rr, http.StatusOK)

	rr = httptest.NewRecorder()
	Readyz(time.Second, func(ctx context.Context) error { return errors.New("loop stopped") })(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	expectStatus(t, rr, http.StatusServiceUnavailable)
}
