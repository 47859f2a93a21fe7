package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"billpay/web/backend"
	"billpay/web/logger"
	"billpay/web/models"
	"billpay/web/payments"
	"billpay/web/receipt"
)

const historyPath = "/mypaybills"

type editDialog struct {
	Record   models.PaymentRecord
	Username string
	Address  string
	Missing  []string
}

type historyData struct {
	Records  []models.PaymentRecord
	Editing  *editDialog
	Deleting *models.PaymentRecord
}

// loadHistory refetches the browser's records. A failed fetch keeps what
// was shown before and adds a notice.
func loadHistory(r *http.Request, history *payments.History) ([]models.PaymentRecord, []notice) {
	records, err := history.Refresh(r.Context())
	switch {
	case err == nil:
		return records, nil
	case errors.Is(err, payments.ErrDiscarded):
		return history.Records(), nil
	default:
		logger.Log.Error().Err(err).Msg("fetching payment history")
		return history.Records(), errorNotice("Failed to fetch your paid bills.")
	}
}

func (h *Handlers) renderHistory(w http.ResponseWriter, r *http.Request, status int, notices []notice, data historyData) {
	h.render(w, r, status, pageMyPayBills, page{
		Title:   "My Pay Bills",
		Notices: notices,
		Data:    data,
	})
}

// MyPayBills lists the signed-in user's payments, most recent first.
func (h *Handlers) MyPayBills(w http.ResponseWriter, r *http.Request) {
	records, notices := loadHistory(r, viewsOf(r).History)
	h.renderHistory(w, r, http.StatusOK, notices, historyData{Records: records})
}

// EditPayment shows the history with the edit dialog open on one record.
func (h *Handlers) EditPayment(w http.ResponseWriter, r *http.Request) {
	history := viewsOf(r).History
	id := mux.Vars(r)["id"]

	records, notices := loadHistory(r, history)
	rec, ok := history.Find(id)
	if !ok {
		redirectWith(w, r, noticeError, "Update failed: Record not found.", historyPath)
		return
	}

	h.renderHistory(w, r, http.StatusOK, notices, historyData{
		Records: records,
		Editing: &editDialog{Record: rec, Username: rec.Username, Address: rec.Address},
	})
}

// UpdatePayment saves a new username and address for a record.
func (h *Handlers) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	history := viewsOf(r).History
	id := mux.Vars(r)["id"]
	form := payments.EditForm{
		Username: r.FormValue("username"),
		Address:  r.FormValue("address"),
	}

	modified, err := history.Edit(r.Context(), id, form)
	var invalid *payments.ValidationError
	switch {
	case errors.As(err, &invalid):
		rec, ok := history.Find(id)
		if !ok {
			rec = models.PaymentRecord{ID: id}
		}
		h.renderHistory(w, r, http.StatusUnprocessableEntity, errorNotice("Please fill in all required fields."), historyData{
			Records: history.Records(),
			Editing: &editDialog{Record: rec, Username: form.Username, Address: form.Address, Missing: invalid.Fields},
		})
	case err != nil:
		logger.Log.Error().Err(err).Str("record_id", id).Msg("updating payment record")
		redirectWith(w, r, noticeError, "Failed to update the bill record.", historyPath)
	case !modified:
		redirectWith(w, r, noticeInfo, "No changes made.", historyPath)
	default:
		redirectWith(w, r, noticeSuccess, "Bill payment record updated successfully!", historyPath)
	}
}

// ConfirmDeletePayment asks for confirmation before a record is deleted.
// Nothing is sent to the backend yet.
func (h *Handlers) ConfirmDeletePayment(w http.ResponseWriter, r *http.Request) {
	history := viewsOf(r).History
	id := mux.Vars(r)["id"]

	records, notices := loadHistory(r, history)
	rec, err := history.RequestDelete(id)
	if err != nil {
		redirectWith(w, r, noticeError, "Deletion failed: Record not found.", historyPath)
		return
	}

	h.renderHistory(w, r, http.StatusOK, notices, historyData{Records: records, Deleting: &rec})
}

// DeletePayment deletes the record whose deletion was confirmed.
func (h *Handlers) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, err := viewsOf(r).History.ConfirmDelete(r.Context(), id)
	switch {
	case err == nil:
		redirectWith(w, r, noticeSuccess, fmt.Sprintf("Payment record for %q deleted successfully!", rec.Title), historyPath)
	case errors.Is(err, payments.ErrNoPendingDelete):
		http.Redirect(w, r, historyPath+"/"+id+"/delete", http.StatusSeeOther)
	case errors.Is(err, backend.ErrInvalidID):
		logger.Log.Warn().Err(err).Str("record_id", id).Msg("deleting payment record")
		redirectWith(w, r, noticeError, "Deletion failed: Invalid Record ID format.", historyPath)
	case errors.Is(err, backend.ErrNotFound):
		logger.Log.Warn().Err(err).Str("record_id", id).Msg("deleting payment record")
		redirectWith(w, r, noticeError, "Deletion failed: Record not found.", historyPath)
	default:
		logger.Log.Error().Err(err).Str("record_id", id).Msg("deleting payment record")
		redirectWith(w, r, noticeError, "Failed to delete the bill record.", historyPath)
	}
}

// CancelDelete dismisses the delete confirmation.
func (h *Handlers) CancelDelete(w http.ResponseWriter, r *http.Request) {
	viewsOf(r).History.CancelDelete()
	http.Redirect(w, r, historyPath, http.StatusSeeOther)
}

// Receipt downloads the receipt of a record already shown in the history,
// as PDF unless ?format=txt. No backend call is made.
func (h *Handlers) Receipt(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, ok := viewsOf(r).History.Find(id)
	if !ok {
		redirectWith(w, r, noticeError, "Receipt unavailable: Record not found.", historyPath)
		return
	}

	var buf bytes.Buffer
	contentType, ext := "application/pdf", "pdf"
	write := receipt.PDF
	if r.URL.Query().Get("format") == "txt" {
		contentType, ext = "text/plain; charset=utf-8", "txt"
		write = receipt.Text
	}

	if err := write(&buf, rec); err != nil {
		logger.Log.Error().Err(err).Str("record_id", id).Msg("composing receipt")
		message := "Failed to generate the receipt."
		if errors.Is(err, receipt.ErrIncomplete) {
			message = "Receipt unavailable: the record is incomplete."
		}
		redirectWith(w, r, noticeError, message, historyPath)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", receipt.FileName(rec, ext)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	writeBody(w, &buf, "receipt")
}
