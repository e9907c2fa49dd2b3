package receipt

import (
	"fmt"
	"strings"
	"time"

	"lokapos/agent/internal/domain"
)

const lineWidth = 32

// Generator renders a plain-text receipt for a finalized transaction. It
// implements the checkout engine's Receipts collaborator.
type Generator struct {
	StoreName string
}

func NewGenerator(storeName string) *Generator {
	if storeName == "" {
		storeName = "LokaPOS"
	}
	return &Generator{StoreName: storeName}
}

func (g *Generator) Generate(tx domain.Transaction) (string, error) {
	if len(tx.Items) == 0 {
		return "", fmt.Errorf("transaction %s has no items", tx.ID)
	}

	var b strings.Builder
	center(&b, g.StoreName)
	center(&b, tx.Timestamp.Format(time.DateTime))
	b.WriteString(strings.Repeat("-", lineWidth) + "\n")

	for _, item := range tx.Items {
		b.WriteString(item.Name + "\n")
		left := fmt.Sprintf("  %d x %s", item.Qty, formatCents(item.SellingPriceCents))
		right := formatCents(item.SellingPriceCents * int64(item.Qty))
		pad := lineWidth - len(left) - len(right)
		if pad < 1 {
			pad = 1
		}
		b.WriteString(left + strings.Repeat(" ", pad) + right + "\n")
	}

	b.WriteString(strings.Repeat("-", lineWidth) + "\n")
	total := "TOTAL " + formatCents(tx.TotalCents)
	pad := lineWidth - len(total)
	if pad < 0 {
		pad = 0
	}
	b.WriteString(strings.Repeat(" ", pad) + total + "\n")
	center(&b, "ID "+tx.ID)

	return b.String(), nil
}

func center(b *strings.Builder, text string) {
	if len(text) >= lineWidth {
		b.WriteString(text + "\n")
		return
	}
	pad := (lineWidth - len(text)) / 2
	b.WriteString(strings.Repeat(" ", pad) + text + "\n")
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
