package domain

import "testing"

func TestSideValid(t *testing.T) {
	if !SideBuy.Valid() {
		t.Error("SideBuy.Valid() = false, want true")
	}
	if !SideSell.Valid() {
		t.Error("SideSell.Valid() = false, want true")
	}
	if Side("HOLD").Valid() {
		t.Error(`Side("HOLD").Valid() = true, want false`)
	}
	if Side("").Valid() {
		t.Error(`Side("").Valid() = true, want false`)
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	if OrderPending.Terminal() {
		t.Error("OrderPending.Terminal() = true, want false")
	}
	if !OrderExecuted.Terminal() {
		t.Error("OrderExecuted.Terminal() = false, want true")
	}
	if !OrderCancelled.Terminal() {
		t.Error("OrderCancelled.Terminal() = false, want true")
	}
}

func TestLimitOrderTriggered(t *testing.T) {
	cases := []struct {
		name   string
		side   Side
		target float64
		price  float64
		want   bool
	}{
		{"buy fires below target", SideBuy, 100, 99, true},
		{"buy fires at target", SideBuy, 100, 100, true},
		{"buy holds above target", SideBuy, 100, 101, false},
		{"sell fires above target", SideSell, 100, 101, true},
		{"sell fires at target", SideSell, 100, 100, true},
		{"sell holds below target", SideSell, 100, 99, false},
	}

	for _, tc := range cases {
		o := &LimitOrder{Side: tc.side, TargetPrice: tc.target}
		if got := o.Triggered(tc.price); got != tc.want {
			t.Errorf("%s: Triggered(%v) = %v, want %v", tc.name, tc.price, got, tc.want)
		}
	}

	// Unknown side never triggers.
	o := &LimitOrder{Side: "HOLD", TargetPrice: 100}
	if o.Triggered(100) {
		t.Error("order with unknown side triggered, want no trigger")
	}
}
