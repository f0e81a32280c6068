package pagination

import (
	"math"
	"testing"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{
		0:   DefaultLimit,
		-5:  DefaultLimit,
		1:   1,
		100: 100,
		250: MaxLimit,
	}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestOffset(t *testing.T) {
	p := Params{Page: 3, Limit: 20}
	if got := p.Offset(); got != 40 {
		t.Fatalf("expected offset 40, got %d", got)
	}
	if got := (Params{Page: 0, Limit: 0}).Offset(); got != 0 {
		t.Fatalf("expected offset 0 for defaults, got %d", got)
	}
	if got := (Params{Page: 2, Limit: 500}).Offset(); got != 100 {
		t.Fatalf("expected clamped offset 100, got %d", got)
	}
}

func TestResultEchoesNormalizedValues(t *testing.T) {
	page := Params{Page: -1, Limit: 250}.Result(7)
	if page.Page != 1 || page.Limit != 100 || page.Count != 7 {
		t.Fatalf("unexpected page descriptor %+v", page)
	}
}

func TestHugePageKeepsOffsetPositive(t *testing.T) {
	p := Params{Page: math.MaxInt, Limit: MaxLimit}
	if got := p.Normalize().Page; got != MaxPage {
		t.Fatalf("expected page clamped to %d, got %d", MaxPage, got)
	}
	if got, want := p.Offset(), (MaxPage-1)*MaxLimit; got != want {
		t.Fatalf("Offset() = %d, want %d", got, want)
	}
}
