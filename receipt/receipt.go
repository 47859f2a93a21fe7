// Package receipt renders a payment record as a downloadable receipt. It
// works purely from the record; nothing is fetched.
package receipt

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"billpay/web/models"
)

const (
	header = "--- Bill Payment Receipt ---"
	footer = "-----------------------------"

	// TakaSign prefixes amounts in the text receipt.
	TakaSign = "৳"
	// the embedded font has no taka sign
	pdfCurrency = "BDT "
	pdfFont     = "DejaVu"
)

// DejaVu covers Latin, Greek and Cyrillic names and addresses. Scripts it
// lacks, Bengali among them, come out as blank glyphs rather than garbage.
//
//go:embed fonts/DejaVuSansCondensed.ttf
var dejaVuSans []byte

// ErrIncomplete is returned for a record without the fields a receipt needs.
var ErrIncomplete = errors.New("payment record is missing receipt fields")

// Line is one labelled value of the receipt.
type Line struct {
	Label string
	Value string
}

// Lines returns the receipt body in its fixed order. The amount is left
// without a currency sign.
func Lines(rec models.PaymentRecord) ([]Line, error) {
	if strings.TrimSpace(rec.BillsID) == "" || strings.TrimSpace(rec.Title) == "" {
		return nil, ErrIncomplete
	}

	return []Line{
		{"Title:", rec.Title},
		{"Category:", rec.Category},
		{"Amount:", rec.Amount.StringFixed(2)},
		{"Payment Date:", rec.PaymentDate},
		{"Bill ID:", rec.BillsID},
		{"Payer Name:", rec.Username},
		{"Phone:", rec.Phone},
		{"Email:", rec.Email},
		{"Address:", rec.Address},
	}, nil
}

// Text writes the receipt as plain UTF-8 text.
func Text(w io.Writer, rec models.PaymentRecord) error {
	lines, err := Lines(rec)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(header + "\n")
	for _, l := range lines {
		value := l.Value
		if l.Label == "Amount:" {
			value = TakaSign + value
		}
		fmt.Fprintf(&b, "%-14s %s\n", l.Label, value)
	}
	b.WriteString(footer + "\n")

	_, err = io.WriteString(w, b.String())
	return err
}

// PDF writes the receipt as a one-page A4 PDF laid out like the text one.
func PDF(w io.Writer, rec models.PaymentRecord) error {
	lines, err := Lines(rec)
	if err != nil {
		return err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Bill Payment Receipt", true)
	pdf.SetCreator("BillPay", true)
	pdf.AddUTF8FontFromBytes(pdfFont, "", dejaVuSans)
	pdf.AddPage()

	y := 10.0
	pdf.SetFont(pdfFont, "", 16)
	pdf.Text(10, y, header)
	y += 10

	pdf.SetFont(pdfFont, "", 12)
	for _, l := range lines {
		value := l.Value
		if l.Label == "Amount:" {
			value = pdfCurrency + value
		}
		pdf.Text(10, y, l.Label)
		pdf.Text(50, y, value)
		y += 7
	}
	pdf.Text(10, y, footer)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render receipt pdf: %w", err)
	}
	return nil
}

// FileName is Receipt_<category>_<first eight characters of billsId>.<ext>.
func FileName(rec models.PaymentRecord, ext string) string {
	id := rec.BillsID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("Receipt_%s_%s.%s", sanitize(rec.Category), sanitize(id), ext)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
