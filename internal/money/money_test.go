package money

import "testing"

func TestAddSub(t *testing.T) {
	a := FromUint64(100)
	b := FromUint64(40)

	sum := a.Add(b)
	if sum.String() != "140" {
		t.Fatalf("Add: got %s, want 140", sum.String())
	}

	diff, err := a.Sub(b)
	if err != nil {
		t.Fatalf("Sub: unexpected error: %v", err)
	}
	if diff.String() != "60" {
		t.Fatalf("Sub: got %s, want 60", diff.String())
	}
}

func TestSubUnderflow(t *testing.T) {
	a := FromUint64(10)
	b := FromUint64(20)
	if _, err := a.Sub(b); err == nil {
		t.Fatal("Sub: expected underflow error, got nil")
	}
}

func TestComparisons(t *testing.T) {
	a := FromUint64(10)
	b := FromUint64(20)

	if !a.LessThan(b) {
		t.Fatal("LessThan: 10 should be less than 20")
	}
	if a.GreaterOrEqual(b) {
		t.Fatal("GreaterOrEqual: 10 should not be >= 20")
	}
	if !b.GreaterOrEqual(a) {
		t.Fatal("GreaterOrEqual: 20 should be >= 10")
	}
	if !a.Equal(FromUint64(10)) {
		t.Fatal("Equal: 10 should equal 10")
	}
}

func TestMulRat(t *testing.T) {
	v := FromUint64(1000)
	got := v.MulRat(0.5)
	if got.String() != "500" {
		t.Fatalf("MulRat: got %s, want 500", got.String())
	}
}

func TestDivUint64(t *testing.T) {
	v := FromUint64(100)
	quotient, ok := v.DivUint64(10)
	if !ok {
		t.Fatal("DivUint64: expected ok")
	}
	if quotient.String() != "10" {
		t.Fatalf("DivUint64: got %s, want 10", quotient.String())
	}

	if _, ok := v.DivUint64(0); ok {
		t.Fatal("DivUint64: division by zero should report !ok")
	}
}

func TestIsZeroIsPositive(t *testing.T) {
	if !Zero().IsZero() {
		t.Fatal("Zero() should report IsZero")
	}
	if Zero().IsPositive() {
		t.Fatal("Zero() should not report IsPositive")
	}
	if !FromUint64(1).IsPositive() {
		t.Fatal("FromUint64(1) should report IsPositive")
	}
}
