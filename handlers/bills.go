package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"billpay/web/backend"
	"billpay/web/catalog"
	"billpay/web/logger"
	"billpay/web/middleware"
	"billpay/web/models"
	"billpay/web/payments"
)

type homeData struct {
	Bills []models.Bill
}

// Home shows the featured bills.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	var notices []notice
	bills, err := h.catalog.Featured(r.Context())
	if err != nil {
		logger.Log.Error().Err(err).Msg("loading featured bills")
		notices = errorNotice("Failed to load bill data.")
	}

	h.render(w, r, http.StatusOK, pageHome, page{
		Title:   "Home",
		Notices: notices,
		Data:    homeData{Bills: bills},
	})
}

type billsData struct {
	Bills      []models.Bill
	Filter     catalog.Filter
	Categories []string
}

// Bills lists the catalogue narrowed by ?category= and ?search=.
func (h *Handlers) Bills(w http.ResponseWriter, r *http.Request) {
	filter := catalog.FilterFromQuery(r.URL.Query())

	var notices []notice
	bills, err := h.catalog.List(r.Context(), filter)
	if err != nil {
		logger.Log.Error().Err(err).Str("category", filter.Category).Str("search", filter.Search).Msg("listing bills")
		notices = errorNotice("Failed to fetch bills from server.")
	}

	h.render(w, r, http.StatusOK, pageBills, page{
		Title:   "All Bills",
		Notices: notices,
		Data:    billsData{Bills: bills, Filter: filter, Categories: catalog.Categories},
	})
}

// paymentDialog is the open payment dialog of the detail page.
type paymentDialog struct {
	Intent  payments.Intent
	Email   string
	Form    payments.Form
	Missing []string
}

type billData struct {
	Bill   *models.Bill
	Dialog *paymentDialog
}

// loadBill fetches the bill named by the route, rendering the failure page
// itself when that is not possible.
func (h *Handlers) loadBill(w http.ResponseWriter, r *http.Request) (*models.Bill, bool) {
	id := mux.Vars(r)["id"]
	bill, err := h.catalog.Get(r.Context(), id)
	switch {
	case err == nil:
		return bill, true
	case errors.Is(err, backend.ErrNotFound), errors.Is(err, backend.ErrInvalidID):
		h.renderError(w, r, http.StatusNotFound, "Bill Not Found", "Bill Not Found.")
	default:
		logger.Log.Error().Err(err).Str("bill_id", id).Msg("fetching bill details")
		h.render(w, r, http.StatusBadGateway, pageError, page{
			Title:   "Bill Details",
			Notices: errorNotice("Failed to fetch bill details."),
			Data:    errorData{Heading: "Bill Details", Message: "The bill could not be loaded. Please try again."},
		})
	}
	return nil, false
}

// BillDetail shows one bill with the payment dialog closed. Any payment
// attempt left open for this browser is abandoned.
func (h *Handlers) BillDetail(w http.ResponseWriter, r *http.Request) {
	bill, ok := h.loadBill(w, r)
	if !ok {
		return
	}
	if v := viewsOf(r); v != nil {
		v.Checkout.Close()
	}

	h.render(w, r, http.StatusOK, pageBill, page{
		Title: bill.Title,
		Data:  billData{Bill: bill},
	})
}

// OpenPayment shows the bill with the payment dialog open on a freshly
// drawn intent.
func (h *Handlers) OpenPayment(w http.ResponseWriter, r *http.Request) {
	bill, ok := h.loadBill(w, r)
	if !ok {
		return
	}
	intent := viewsOf(r).Checkout.Open(bill.ID)

	h.render(w, r, http.StatusOK, pageBill, page{
		Title: bill.Title,
		Data: billData{Bill: bill, Dialog: &paymentDialog{
			Intent: intent,
			Email:  payerEmail(r),
		}},
	})
}

// SubmitPayment pays the bill with the open intent. On success a
// confirmation is shown that moves on to the history after the configured
// delay; on failure the dialog stays open with what was typed.
func (h *Handlers) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	bill, ok := h.loadBill(w, r)
	if !ok {
		return
	}
	checkout := viewsOf(r).Checkout
	form := payments.Form{
		Username: r.FormValue("username"),
		Phone:    r.FormValue("phone"),
		Address:  r.FormValue("address"),
	}

	rec, err := checkout.Submit(r.Context(), *bill, form)
	if err == nil {
		h.render(w, r, http.StatusOK, pageSuccess, page{
			Title:   "Payment Complete",
			Notices: []notice{{Kind: noticeSuccess, Message: "Bill paid successfully! Redirecting to My Bills..."}},
			Refresh: refreshAfter(h.redirectDelay, "/mypaybills"),
			Data:    rec,
		})
		return
	}

	if errors.Is(err, payments.ErrUnauthenticated) {
		redirectWith(w, r, noticeError, "Please log in to make a payment.",
			middleware.LoginPath+"?next="+url.QueryEscape("/bills/"+bill.ID))
		return
	}

	intent, open := checkout.Current(bill.ID)
	if !open {
		intent = checkout.Open(bill.ID)
	}
	dialog := &paymentDialog{Intent: intent, Email: payerEmail(r), Form: form}

	status := http.StatusBadGateway
	var notices []notice
	var invalid *payments.ValidationError
	if errors.As(err, &invalid) {
		status = http.StatusUnprocessableEntity
		dialog.Missing = invalid.Fields
		notices = errorNotice("Please fill in all required fields.")
	} else {
		logger.Log.Error().Err(err).Str("bill_id", bill.ID).Str("bills_id", intent.BillsID).Msg("submitting payment")
		notices = errorNotice("Payment failed. Please try again.")
	}

	h.render(w, r, status, pageBill, page{
		Title:   bill.Title,
		Notices: notices,
		Data:    billData{Bill: bill, Dialog: dialog},
	})
}

func payerEmail(r *http.Request) string {
	if s := storeOf(r); s != nil {
		if id := s.Identity(); id != nil {
			return id.Email
		}
	}
	return ""
}
