package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
		display  string
	}{
		{"USD", USD(2000), 2000, "usd", "$20.00"},
		{"USDC", USDC(5000), 5000, "usdc", "$50.00"},
		{"Zero USD", Zero("USD"), 0, "usd", "$0.00"},
		{"Zero USDC", Zero("usdc"), 0, "usdc", "$0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return USD(100).Add(USD(200)) }, USD(300)},
		{"Subtract", func() Money { return USD(500).Subtract(USD(200)) }, USD(300)},
		{"Subtract below zero", func() Money { return USD(100).Subtract(USD(200)) }, USD(-100)},
		{"USDC add", func() Money { return USDC(100).Add(USDC(50)) }, USDC(150)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.op()
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for currency mismatch")
		}
	}()

	// This should panic
	_ = USD(100).Add(USDC(100))
}

func TestApplyBasisPoints(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		bps      int64
		expected Money
	}{
		{"2% of $30", USD(3000), 200, USD(60)},
		{"2% of $50", USD(5000), 200, USD(100)},
		{"Truncates toward zero", USD(99), 200, USD(1)}, // 1.98 cents -> 1
		{"Sub-cent truncates to zero", USD(49), 200, USD(0)},
		{"Zero rate", USD(3000), 0, USD(0)},
		{"Full rate", USD(3000), 10_000, USD(3000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.money.ApplyBasisPoints(tt.bps)
			if !result.Equal(tt.expected) {
				t.Errorf("ApplyBasisPoints: got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSplitFee(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		bps      int64
		fee, net Money
	}{
		{"2% of $30", USD(3000), 200, USD(60), USD(2940)},
		{"2% of $20", USD(2000), 200, USD(40), USD(1960)},
		{"Odd amount", USD(1001), 200, USD(20), USD(981)},
		{"Zero amount", USD(0), 200, USD(0), USD(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, net := tt.money.SplitFee(tt.bps)
			if !fee.Equal(tt.fee) {
				t.Errorf("fee: got %v, want %v", fee, tt.fee)
			}
			if !net.Equal(tt.net) {
				t.Errorf("net: got %v, want %v", net, tt.net)
			}
			if !fee.Add(net).Equal(tt.money) {
				t.Errorf("fee + net = %v, want %v", fee.Add(net), tt.money)
			}
		})
	}
}

func TestMoneyComparison(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Money
		less    bool
		greater bool
		equal   bool
	}{
		{"Equal", USD(100), USD(100), false, false, true},
		{"Less", USD(50), USD(100), true, false, false},
		{"Greater", USD(200), USD(100), false, true, false},
		{"Zero equal", USD(0), Zero("usd"), false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.LessThan(tt.b); got != tt.less {
				t.Errorf("LessThan: got %v, want %v", got, tt.less)
			}
			if got := tt.a.GreaterThan(tt.b); got != tt.greater {
				t.Errorf("GreaterThan: got %v, want %v", got, tt.greater)
			}
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal: got %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestMoneyPredicates(t *testing.T) {
	tests := []struct {
		name       string
		money      Money
		isZero     bool
		isPositive bool
		isNegative bool
	}{
		{"Zero", USD(0), true, false, false},
		{"Positive", USD(100), false, true, false},
		{"Negative", USD(-100), false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.money.IsZero(); got != tt.isZero {
				t.Errorf("IsZero: got %v, want %v", got, tt.isZero)
			}
			if got := tt.money.IsPositive(); got != tt.isPositive {
				t.Errorf("IsPositive: got %v, want %v", got, tt.isPositive)
			}
			if got := tt.money.IsNegative(); got != tt.isNegative {
				t.Errorf("IsNegative: got %v, want %v", got, tt.isNegative)
			}
		})
	}
}

func TestMoneyFormatMajor(t *testing.T) {
	tests := []struct {
		money    Money
		expected string
	}{
		{USD(2000), "20.00"},
		{USD(100), "1.00"},
		{USD(1), "0.01"},
		{USD(0), "0.00"},
		{USD(-2000), "-20.00"},
		{USD(-1), "-0.01"},
		{USDC(9999), "99.99"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.money.FormatMajor(); got != tt.expected {
				t.Errorf("FormatMajor: got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	m := USD(2000)

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	expected := `{"amount":2000,"currency":"usd","display":"$20.00"}`
	if string(data) != expected {
		t.Errorf("JSON: got %s, want %s", string(data), expected)
	}

	var result Money
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if !result.Equal(m) {
		t.Errorf("Round trip: got %v, want %v", result, m)
	}
}

func TestMoneyUnmarshalNormalizesCurrency(t *testing.T) {
	var m Money
	if err := json.Unmarshal([]byte(`{"amount":500,"currency":"USDC"}`), &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if m.Currency != "usdc" {
		t.Errorf("Currency: got %s, want usdc", m.Currency)
	}
}

func TestSum(t *testing.T) {
	tests := []struct {
		name     string
		values   []Money
		expected Money
	}{
		{"Empty", []Money{}, Zero("usd")},
		{"Single", []Money{USD(100)}, USD(100)},
		{"Multiple", []Money{USD(100), USD(200), USD(300)}, USD(600)},
		{"With negatives", []Money{USD(100), USD(-50), USD(200)}, USD(250)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Sum("usd", tt.values...)
			if !result.Equal(tt.expected) {
				t.Errorf("Sum: got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestCurrencySymbols(t *testing.T) {
	tests := []struct {
		currency string
		symbol   string
	}{
		{"usd", "$"},
		{"usdc", "$"},
		{"unknown", "UNKNOWN "},
	}

	for _, tt := range tests {
		t.Run(tt.currency, func(t *testing.T) {
			got := currencySymbol(tt.currency)
			if got != tt.symbol {
				t.Errorf("Symbol for %s: got %s, want %s", tt.currency, got, tt.symbol)
			}
		})
	}
}

func BenchmarkMoneyAdd(b *testing.B) {
	m1 := USD(100)
	m2 := USD(200)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m1.Add(m2)
	}
}

func BenchmarkSplitFee(b *testing.B) {
	m := USD(3000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.SplitFee(200)
	}
}
