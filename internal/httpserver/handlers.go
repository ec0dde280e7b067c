package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"rsvpdash/internal/domain"
	"rsvpdash/internal/export"
	"rsvpdash/internal/filter"
	"rsvpdash/internal/service"
)

const maxUploadBytes = 5 << 20

type API struct {
	Events    *service.EventService
	Contacts  *service.ContactService
	Messaging *service.MessagingService
	RSVPs     *service.RSVPService
	Reports   *service.ReportService
}

func (a *API) Register(m *mux.Router) {
	v1 := m.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/events", a.handleListEvents).Methods(http.MethodGet)
	v1.HandleFunc("/events", a.handleCreateEvent).Methods(http.MethodPost)
	v1.HandleFunc("/events/{id:[0-9]+}", a.handleGetEvent).Methods(http.MethodGet)
	v1.HandleFunc("/events/{id:[0-9]+}", a.handleUpdateEvent).Methods(http.MethodPatch)
	v1.HandleFunc("/events/{id:[0-9]+}/stats", a.handleEventStats).Methods(http.MethodGet)
	v1.HandleFunc("/events/{id:[0-9]+}/reminders", a.handleGetReminders).Methods(http.MethodGet)
	v1.HandleFunc("/events/{id:[0-9]+}/reminders", a.handleSaveReminders).Methods(http.MethodPut)
	v1.HandleFunc("/events/{id:[0-9]+}/reminders/send", a.handleSendReminders).Methods(http.MethodPost)
	v1.HandleFunc("/events/{id:[0-9]+}/available-lists", a.handleAvailableLists).Methods(http.MethodGet)
	v1.HandleFunc("/events/{id:[0-9]+}/lists", a.handleAssignLists).Methods(http.MethodPost)
	v1.HandleFunc("/events/{id:[0-9]+}/lists/{listId:[0-9]+}", a.handleUnassignList).Methods(http.MethodDelete)
	v1.HandleFunc("/events/{id:[0-9]+}/messages", a.handleEventMessages).Methods(http.MethodGet)
	v1.HandleFunc("/events/{id:[0-9]+}/messages", a.handleSendInvitations).Methods(http.MethodPost)
	v1.HandleFunc("/events/{id:[0-9]+}/messages/{contactId:[0-9]+}", a.handleSendOne).Methods(http.MethodPost)
	v1.HandleFunc("/events/{id:[0-9]+}/rsvps/export", a.handleExportRSVPs).Methods(http.MethodGet)

	v1.HandleFunc("/lists", a.handleListLists).Methods(http.MethodGet)
	v1.HandleFunc("/lists", a.handleCreateList).Methods(http.MethodPost)
	v1.HandleFunc("/lists/{id:[0-9]+}", a.handleGetList).Methods(http.MethodGet)
	v1.HandleFunc("/lists/{id:[0-9]+}", a.handleUpdateList).Methods(http.MethodPatch)
	v1.HandleFunc("/lists/{id:[0-9]+}", a.handleDeleteList).Methods(http.MethodDelete)
	v1.HandleFunc("/lists/{id:[0-9]+}/contacts", a.handleListContacts).Methods(http.MethodGet)
	v1.HandleFunc("/lists/{id:[0-9]+}/contacts", a.handleCreateContact).Methods(http.MethodPost)
	v1.HandleFunc("/lists/{id:[0-9]+}/import", a.handleImport).Methods(http.MethodPost)

	v1.HandleFunc("/contacts", a.handleContactRows).Methods(http.MethodGet)
	v1.HandleFunc("/contacts/deleted", a.handleDeletedContacts).Methods(http.MethodGet)
	v1.HandleFunc("/contacts/{id:[0-9]+}", a.handleGetContact).Methods(http.MethodGet)
	v1.HandleFunc("/contacts/{id:[0-9]+}", a.handleUpdateContact).Methods(http.MethodPatch)
	v1.HandleFunc("/contacts/{id:[0-9]+}", a.handleDeleteContact).Methods(http.MethodDelete)
	v1.HandleFunc("/contacts/{id:[0-9]+}/restore", a.handleRestoreContact).Methods(http.MethodPost)
	v1.HandleFunc("/contacts/{id:[0-9]+}/messages", a.handleContactMessages).Methods(http.MethodGet)

	v1.HandleFunc("/messages", a.handleListMessages).Methods(http.MethodGet)
	v1.HandleFunc("/messages/stats", a.handleMessageStats).Methods(http.MethodGet)
	v1.HandleFunc("/messages/{id:[0-9]+}", a.handleGetMessage).Methods(http.MethodGet)

	v1.HandleFunc("/rsvps", a.handleListRSVPs).Methods(http.MethodGet)
	v1.HandleFunc("/rsvps", a.handleSubmitRSVP).Methods(http.MethodPost)
	v1.HandleFunc("/rsvps/stats", a.handleRSVPStats).Methods(http.MethodGet)

	v1.HandleFunc("/reports", a.handleReportRows).Methods(http.MethodGet)
	v1.HandleFunc("/reports/stats", a.handleReportStats).Methods(http.MethodGet)
	v1.HandleFunc("/reports/export", a.handleReportExport).Methods(http.MethodGet)
}

// Events

func (a *API) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := a.Events.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (a *API) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	ev, err := a.Events.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (a *API) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := a.Events.Get(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (a *API) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	ev, err := a.Events.Update(r.Context(), pathID(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (a *API) handleEventStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.Events.Stats(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handleGetReminders(w http.ResponseWriter, r *http.Request) {
	rs, err := a.Events.Reminders(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (a *API) handleSaveReminders(w http.ResponseWriter, r *http.Request) {
	var rs domain.ReminderSettings
	if err := decodeJSON(r, &rs); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	saved, err := a.Events.SaveReminders(r.Context(), pathID(r, "id"), rs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (a *API) handleAvailableLists(w http.ResponseWriter, r *http.Request) {
	lists, err := a.Events.AvailableLists(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

type assignListsRequest struct {
	ListIDs []int64 `json:"listIds"`
}

func (a *API) handleAssignLists(w http.ResponseWriter, r *http.Request) {
	var req assignListsRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	ev, err := a.Events.AssignLists(r.Context(), pathID(r, "id"), req.ListIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (a *API) handleUnassignList(w http.ResponseWriter, r *http.Request) {
	ev, err := a.Events.UnassignList(r.Context(), pathID(r, "id"), pathID(r, "listId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// Messaging

type sendFunc func(ctx context.Context, eventID int64, req domain.SendMessagesRequest) (domain.SendResult, error)

func (a *API) handleSendInvitations(w http.ResponseWriter, r *http.Request) {
	a.handleSend(w, r, a.Messaging.SendInvitations)
}

func (a *API) handleSendReminders(w http.ResponseWriter, r *http.Request) {
	a.handleSend(w, r, a.Messaging.SendReminders)
}

// handleSend answers 202: messages exist in state sent, delivery is still
// in flight.
func (a *API) handleSend(w http.ResponseWriter, r *http.Request, send sendFunc) {
	var req domain.SendMessagesRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	res, err := send(r.Context(), pathID(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

type sendOneRequest struct {
	Content string `json:"content"`
}

func (a *API) handleSendOne(w http.ResponseWriter, r *http.Request) {
	var req sendOneRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	m, err := a.Messaging.SendOne(r.Context(), pathID(r, "id"), pathID(r, "contactId"), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, m)
}

func (a *API) handleEventMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := a.Messaging.ListByEvent(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (a *API) handleContactMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := a.Messaging.ListByContact(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (a *API) handleListMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := a.Messaging.List(r.Context(), filter.MessageCriteria{
		Search: q.Get("search"),
		Status: q.Get("status"),
		Event:  q.Get("event"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *API) handleMessageStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.Messaging.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	m, err := a.Messaging.Get(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Contact lists

func (a *API) handleListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := a.Contacts.Lists(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

func (a *API) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var in domain.ContactListInput
	if err := decodeJSON(r, &in); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	l, err := a.Contacts.CreateList(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (a *API) handleGetList(w http.ResponseWriter, r *http.Request) {
	l, err := a.Contacts.GetList(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) handleUpdateList(w http.ResponseWriter, r *http.Request) {
	var in domain.ContactListInput
	if err := decodeJSON(r, &in); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	l, err := a.Contacts.UpdateList(r.Context(), pathID(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	if err := a.Contacts.DeleteList(r.Context(), pathID(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := a.Contacts.ListByList(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (a *API) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var in domain.ContactInput
	if err := decodeJSON(r, &in); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	c, err := a.Contacts.Create(r.Context(), pathID(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleImport accepts either a multipart upload in the "file" field or a
// raw text/csv body.
func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	var body io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, ErrBadUpload, http.StatusBadRequest)
			return
		}
		defer f.Close()
		body = f
	}
	res, err := a.Contacts.Import(r.Context(), pathID(r, "id"), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Contacts

func (a *API) handleContactRows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := a.Reports.Contacts(r.Context(), filter.ContactCriteria{
		Search: q.Get("search"),
		List:   q.Get("list"),
		Status: q.Get("status"),
		RSVP:   q.Get("rsvp"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *API) handleDeletedContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := a.Contacts.ListDeleted(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (a *API) handleGetContact(w http.ResponseWriter, r *http.Request) {
	c, err := a.Contacts.Get(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	var in service.ContactUpdate
	if err := decodeJSON(r, &in); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	c, err := a.Contacts.Update(r.Context(), pathID(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := a.Contacts.Delete(r.Context(), pathID(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRestoreContact(w http.ResponseWriter, r *http.Request) {
	c, err := a.Contacts.Restore(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// RSVPs

func (a *API) handleSubmitRSVP(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitRSVPRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	resp, created, err := a.RSVPs.Submit(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

// handleListRSVPs filters by ?eventId= or ?phone= when given.
func (a *API) handleListRSVPs(w http.ResponseWriter, r *http.Request) {
	var (
		out []domain.RSVPResponse
		err error
	)
	if id, ok := queryID(r, "eventId"); ok {
		out, err = a.RSVPs.ListByEvent(r.Context(), id)
	} else if phone := r.URL.Query().Get("phone"); phone != "" {
		out, err = a.RSVPs.ListByPhone(r.Context(), phone)
	} else {
		out, err = a.RSVPs.List(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleRSVPStats(w http.ResponseWriter, r *http.Request) {
	id, _ := queryID(r, "eventId")
	st, err := a.RSVPs.Stats(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handleExportRSVPs(w http.ResponseWriter, r *http.Request) {
	f, err := a.RSVPs.Export(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeFile(w, f)
}

// Reports

func reportCriteria(r *http.Request) filter.ReportCriteria {
	q := r.URL.Query()
	return filter.ReportCriteria{
		Search: q.Get("search"),
		Event:  q.Get("event"),
		Status: q.Get("status"),
		RSVP:   q.Get("rsvp"),
	}
}

func (a *API) handleReportRows(w http.ResponseWriter, r *http.Request) {
	rows, err := a.Reports.Rows(r.Context(), reportCriteria(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *API) handleReportStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.Reports.Stats(r.Context(), reportCriteria(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleReportExport narrows with ?exportEvent= and ?statuses=yes,no only;
// the search and filter params of /reports are ignored.
func (a *API) handleReportExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := export.Options{
		Format:       q.Get("format"),
		EventID:      q.Get("exportEvent"),
		RSVPStatuses: splitList(q["statuses"]),
	}
	f, err := a.Reports.Export(r.Context(), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeFile(w, f)
}

func splitList(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func writeFile(w http.ResponseWriter, f service.File) {
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Body)
}
