// Package backendtest runs an in-memory stand-in for the bill backend.
package backendtest

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"billpay/web/models"
)

// Server is a fake of the bill REST backend. Record ids are 24 hex digits
// like the real backend's; anything else is answered with 400.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	bills    []models.Bill
	records  []models.PaymentRecord
	writes   int
	requests []string
	failures map[string]int
}

// New starts a fake serving bills under /api/v1. Call Close when done.
func New(bills ...models.Bill) *Server {
	s := &Server{
		bills:    append([]models.Bill(nil), bills...),
		failures: make(map[string]int),
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/bills", s.listBills).Methods(http.MethodGet)
	api.HandleFunc("/bills/{id}", s.getBill).Methods(http.MethodGet)
	api.HandleFunc("/mybills/{email}", s.listPayments).Methods(http.MethodGet)
	api.HandleFunc("/mybills", s.createPayment).Methods(http.MethodPost)
	api.HandleFunc("/mybills/{id}", s.updatePayment).Methods(http.MethodPut)
	api.HandleFunc("/mybills/{id}", s.deletePayment).Methods(http.MethodDelete)

	s.Server = httptest.NewServer(s.record(r))
	return s
}

// BaseURL is the value to configure the client with.
func (s *Server) BaseURL() string { return s.URL + "/api/v1" }

// Fail makes the next request whose "METHOD path-template" key matches
// (for example "POST /mybills") answer with status.
func (s *Server) Fail(key string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key] = status
}

// Writes counts POST, PUT and DELETE requests received.
func (s *Server) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Requests lists "METHOD path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Records returns the stored payment records in storage order.
func (s *Server) Records() []models.PaymentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PaymentRecord(nil), s.records...)
}

// AddRecord stores rec as if it had been posted and returns its id.
func (s *Server) AddRecord(rec models.PaymentRecord) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = newRecordID()
	s.records = append(s.records, rec)
	return rec.ID
}

func (s *Server) record(next *mux.Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/api/v1")

		var match mux.RouteMatch
		template := key
		if next.Match(r, &match) && match.Route != nil {
			if tpl, err := match.Route.GetPathTemplate(); err == nil {
				template = r.Method + " " + strings.TrimPrefix(tpl, "/api/v1")
			}
		}

		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.RequestURI())
		if r.Method != http.MethodGet {
			s.writes++
		}
		status, fail := s.failures[template]
		if !fail {
			status, fail = s.failures[key]
		}
		if fail {
			delete(s.failures, template)
			delete(s.failures, key)
		}
		s.mu.Unlock()

		if fail {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listBills(w http.ResponseWriter, r *http.Request) {
	category := strings.ToLower(r.URL.Query().Get("category"))
	search := strings.ToLower(r.URL.Query().Get("search"))

	s.mu.Lock()
	out := make([]models.Bill, 0, len(s.bills))
	for _, b := range s.bills {
		if category != "" && strings.ToLower(b.Category) != category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(b.Title), search) &&
			!strings.Contains(strings.ToLower(b.Location), search) {
			continue
		}
		out = append(out, b)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getBill(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bills {
		if b.ID == id {
			writeJSON(w, http.StatusOK, b)
			return
		}
	}
	http.Error(w, "bill not found", http.StatusNotFound)
}

func (s *Server) listPayments(w http.ResponseWriter, r *http.Request) {
	email := mux.Vars(r)["email"]

	s.mu.Lock()
	out := make([]models.PaymentRecord, 0)
	for _, rec := range s.records {
		if rec.Email == email {
			out = append(out, rec)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, models.PaymentRecordList{MyBills: out})
}

func (s *Server) createPayment(w http.ResponseWriter, r *http.Request) {
	var rec models.PaymentRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	rec.ID = newRecordID()
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) updatePayment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !validRecordID(id) {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var upd models.PaymentUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID != id {
			continue
		}
		var modified int64
		if s.records[i].Username != upd.Username || s.records[i].Address != upd.Address {
			s.records[i].Username = upd.Username
			s.records[i].Address = upd.Address
			modified = 1
		}
		writeJSON(w, http.StatusOK, models.UpdateResult{ModifiedCount: modified})
		return
	}
	http.Error(w, "record not found", http.StatusNotFound)
}

func (s *Server) deletePayment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !validRecordID(id) {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			writeJSON(w, http.StatusOK, models.DeleteResult{DeletedCount: 1})
			return
		}
	}
	http.Error(w, "record not found", http.StatusNotFound)
}

func newRecordID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func validRecordID(id string) bool {
	if len(id) != 24 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
