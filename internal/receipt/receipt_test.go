package receipt

import (
	"strings"
	"testing"
	"time"

	"lokapos/agent/internal/domain"
)

func TestGenerate(t *testing.T) {
	g := NewGenerator("Toko Maju")

	tx := domain.NewTransaction("tx-1", []domain.TransactionItem{
		{ProductID: "p1", Name: "Mie Goreng Instan", SellingPriceCents: 3500, CostPriceCents: 2600, Qty: 2},
		{ProductID: "p2", Name: "Kopi Sachet", SellingPriceCents: 2600, CostPriceCents: 1700, Qty: 1},
	}, time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))

	out, err := g.Generate(tx)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for _, want := range []string{"Toko Maju", "Mie Goreng Instan", "Kopi Sachet", "TOTAL 96.00", "ID tx-1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("receipt missing %q:\n%s", want, out)
		}
	}
}

func TestGenerateRejectsEmptyTransaction(t *testing.T) {
	g := NewGenerator("")
	if _, err := g.Generate(domain.Transaction{ID: "tx-1"}); err == nil {
		t.Fatalf("empty transaction accepted")
	}
}

func TestFormatCents(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{6500, "65.00"},
		{123456, "1234.56"},
		{-150, "-1.50"},
	}
	for _, tc := range cases {
		if got := formatCents(tc.cents); got != tc.want {
			t.Fatalf("formatCents(%d) = %s, want %s", tc.cents, got, tc.want)
		}
	}
}
