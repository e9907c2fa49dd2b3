package syncengine

import (
	"testing"
	"time"

	"lokapos/agent/internal/domain"
)

func TestResolve(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	productAt := func(updatedAt time.Time) *domain.Product {
		return &domain.Product{ID: "p1", Name: "Widget", UpdatedAt: updatedAt}
	}

	cases := []struct {
		name   string
		local  *domain.Product
		remote *domain.Product
		want   Action
	}{
		{"both absent", nil, nil, NoOp},
		{"only remote", nil, productAt(base), CreateLocalFromRemote},
		{"only local", productAt(base), nil, CreateRemoteFromLocal},
		{"local newer", productAt(base.Add(time.Minute)), productAt(base), PushLocal},
		{"remote newer", productAt(base), productAt(base.Add(time.Minute)), PullRemote},
		{"equal timestamps", productAt(base), productAt(base), NoOp},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Resolve(tc.local, tc.remote); got != tc.want {
				t.Fatalf("Resolve = %s, want %s", got, tc.want)
			}
		})
	}
}
