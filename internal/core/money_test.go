package core

import (
	"encoding/json"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"12,345", 1235, true},
		{" 2.50 ", 250, true},
		{"-1", -100, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"92233720368547758.07", 9223372036854775807, true},
		{"92233720368547758.08", 0, false},
		{"184467440737095516.17", 0, false},
		{"-92233720368547758.08", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyJSONRejectsOverflow(t *testing.T) {
	var in struct {
		Amount Money `json:"amount"`
	}
	for _, body := range []string{`{"amount": 184467440737095516.17}`, `{"amount": "92233720368547758.08"}`} {
		if err := json.Unmarshal([]byte(body), &in); err == nil {
			t.Fatalf("%s: expected error, got %d cents", body, in.Amount.Cents)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		100000: "1000.00",
		1:      "0.01",
		0:      "0.00",
		-250:   "-2.50",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Fatalf("%d: expected %q, got %q", cents, want, got)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	var in struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a": 12.5, "b": "7,25"}`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if in.A.Cents != 1250 || in.B.Cents != 725 {
		t.Fatalf("unexpected amounts %+v", in)
	}
	out, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"a":12.50,"b":7.25}` {
		t.Fatalf("unexpected json %s", out)
	}
}

func TestSplitInstallments(t *testing.T) {
	cases := []struct {
		net  int64
		n    int
		want []int64
	}{
		{100000, 1, []int64{100000}},
		{100000, 4, []int64{25000, 25000, 25000, 25000}},
		{100000, 3, []int64{33333, 33333, 33334}},
		{1000, 7, []int64{142, 142, 142, 142, 142, 142, 148}},
	}
	for _, tc := range cases {
		got := SplitInstallments(Money{Cents: tc.net}, tc.n)
		if len(got) != len(tc.want) {
			t.Fatalf("net=%d n=%d: expected %d slices, got %d", tc.net, tc.n, len(tc.want), len(got))
		}
		var sum int64
		for i, m := range got {
			if m.Cents != tc.want[i] {
				t.Fatalf("net=%d n=%d slice %d: expected %d, got %d", tc.net, tc.n, i, tc.want[i], m.Cents)
			}
			sum += m.Cents
		}
		if sum != tc.net {
			t.Fatalf("net=%d n=%d: slices sum to %d", tc.net, tc.n, sum)
		}
	}
	if got := SplitInstallments(Money{Cents: 100}, 0); got != nil {
		t.Fatalf("expected nil for zero installments, got %v", got)
	}
}
