package notifications

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.Japanese)

// FormatAmount renders a donation amount in yen with digit grouping, e.g. ¥1,000.
func FormatAmount(amount int64) string {
	return amountPrinter.Sprintf("¥%d", amount)
}
