// Package receipt renders sales for kiosk staff and customers.
package receipt

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/unicode/norm"

	"github.com/erazemk/avtomat/internal/model"
)

// TimeLayout is the timestamp format printed on receipts.
const TimeLayout = "02/01/2006 15:04:05"

const rule = "============================="

var printer = message.NewPrinter(language.Indonesian)

// Rupiah formats an amount as whole rupiah with Indonesian digit grouping,
// for example "Rp 10.000".
func Rupiah(d decimal.Decimal) string {
	whole := d.Round(0)
	if whole.IsNegative() {
		return "-Rp " + printer.Sprintf("%d", whole.Neg().IntPart())
	}
	return "Rp " + printer.Sprintf("%d", whole.IntPart())
}

// Render writes the detail block of one sale.
func Render(w io.Writer, s model.Sale) error {
	var b strings.Builder
	fmt.Fprintln(&b, "========== AVTOMAT ==========")
	fmt.Fprintln(&b, "       Vending Machine")
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Sale ID      : %s\n", s.ID)
	fmt.Fprintf(&b, "Date         : %s\n", s.CreatedAt.Format(TimeLayout))
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "PURCHASE DETAILS:")
	fmt.Fprintf(&b, "Product      : %s\n", norm.NFC.String(s.Item.Name))
	fmt.Fprintf(&b, "Unit price   : %s\n", Rupiah(s.Item.Price))
	fmt.Fprintf(&b, "Quantity     : %d\n", s.Quantity)
	fmt.Fprintln(&b, "-----------------------------")
	fmt.Fprintf(&b, "TOTAL        : %s\n", Rupiah(s.Total()))
	fmt.Fprintf(&b, "Status       : %s\n", s.Status.DisplayName())
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "Thank you for your purchase!")
	fmt.Fprintln(&b, rule)

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("writing receipt: %w", err)
	}
	return nil
}

// Line renders a sale as one row of a history listing.
func Line(s model.Sale) string {
	return fmt.Sprintf("%s  %s  %-20s %3d  %12s  %s",
		s.ID,
		s.CreatedAt.Format(TimeLayout),
		norm.NFC.String(s.Item.Name),
		s.Quantity,
		Rupiah(s.Total()),
		s.Status.DisplayName(),
	)
}
