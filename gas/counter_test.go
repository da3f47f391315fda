package gas

import "testing"

func TestCounterChargeOk(t *testing.T) {
	c := NewCounter(100, 200)
	if out := c.Charge(40); out != Charged {
		t.Fatalf("Charge(40) = %v, want Charged", out)
	}
	if c.GasLeft() != 60 {
		t.Fatalf("GasLeft() = %d, want 60", c.GasLeft())
	}
	if c.AllowanceLeft() != 160 {
		t.Fatalf("AllowanceLeft() = %d, want 160", c.AllowanceLeft())
	}
	if c.Burned() != 40 {
		t.Fatalf("Burned() = %d, want 40", c.Burned())
	}
}

func TestCounterNotEnoughGas(t *testing.T) {
	c := NewCounter(10, 200)
	if out := c.Charge(11); out != NotEnoughGas {
		t.Fatalf("Charge(11) = %v, want NotEnoughGas", out)
	}
	if c.GasLeft() != 10 {
		t.Fatal("counter state mutated on failed charge")
	}
}

func TestCounterNotEnoughAllowance(t *testing.T) {
	c := NewCounter(100, 10)
	if out := c.Charge(11); out != NotEnoughAllowance {
		t.Fatalf("Charge(11) = %v, want NotEnoughAllowance", out)
	}
	if c.GasLeft() != 100 || c.AllowanceLeft() != 10 {
		t.Fatal("counter state mutated on failed charge")
	}
}

func TestCounterGasCheckedBeforeAllowance(t *testing.T) {
	// Both counters are too small, but gas is checked first.
	c := NewCounter(5, 3)
	if out := c.Charge(10); out != NotEnoughGas {
		t.Fatalf("Charge(10) = %v, want NotEnoughGas (gas checked first)", out)
	}
}

func TestCounterRefund(t *testing.T) {
	c := NewCounter(100, 200)
	c.Charge(40)
	c.Refund(10)
	if c.GasLeft() != 70 {
		t.Fatalf("GasLeft() after refund = %d, want 70", c.GasLeft())
	}
	if c.AllowanceLeft() != 160 {
		t.Fatal("Refund must not credit the allowance counter")
	}
	if c.Burned() != 30 {
		t.Fatalf("Burned() after refund = %d, want 30", c.Burned())
	}
}

func TestCounterRefundCappedAtLimit(t *testing.T) {
	c := NewCounter(100, 200)
	c.Refund(1000)
	if c.GasLeft() != 100 {
		t.Fatalf("GasLeft() = %d, want capped at limit 100", c.GasLeft())
	}
}

func TestCounterLeftIsMin(t *testing.T) {
	c := NewCounter(100, 30)
	if c.Left() != 30 {
		t.Fatalf("Left() = %d, want 30", c.Left())
	}
	c2 := NewCounter(20, 30)
	if c2.Left() != 20 {
		t.Fatalf("Left() = %d, want 20", c2.Left())
	}
}
