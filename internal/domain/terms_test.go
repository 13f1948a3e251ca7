package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "deal_room/pkg/errors"
)

func TestTermsPayload_ToTerms_PicksVariant(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want DealType
	}{
		{"equity", `{"deal_type":"equity","investment_amount":5000000,"equity_percentage":10,"valuation":"50000000"}`, DealTypeEquity},
		{"convertible note", `{"deal_type":"convertible_note","valuation_cap":8000000,"interest_rate":6,"maturity_date":"2027-01-01T00:00:00Z"}`, DealTypeConvertibleNote},
		{"safe", `{"deal_type":"safe","valuation_cap":10000000,"conversion_discount":20}`, DealTypeSAFE},
		{"revenue share", `{"deal_type":"revenue_share","revenue_percentage":5,"return_cap":1.5,"payment_frequency":"quarterly"}`, DealTypeRevenueShare},
		{"grant", `{"deal_type":"grant","investment_amount":50000}`, DealTypeGrant},
		{"other", `{"deal_type":"other","additional_terms":"board seat"}`, DealTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var terms DealTerms
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &terms))
			assert.Equal(t, tt.want, terms.DealType())
			assert.NoError(t, terms.Validate())
		})
	}
}

func TestTermsPayload_RejectsForeignFields(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"cap on equity", `{"deal_type":"equity","valuation_cap":1000}`, "valuation_cap"},
		{"equity on safe", `{"deal_type":"safe","equity_percentage":10}`, "equity_percentage"},
		{"interest on safe", `{"deal_type":"safe","interest_rate":5}`, "interest_rate"},
		{"frequency on grant", `{"deal_type":"grant","payment_frequency":"monthly"}`, "payment_frequency"},
		{"fields without type", `{"valuation":1000}`, "deal_type"},
		{"unknown type", `{"deal_type":"loan"}`, "deal_type"},
		{"unknown key", `{"deal_type":"equity","equity":10}`, "equity"},
		{"misspelled amount", `{"deal_type":"grant","investment":5000}`, "investment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var terms DealTerms
			err := json.Unmarshal([]byte(tt.raw), &terms)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrValidation)

			var ve *apperrors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestDealTerms_Validate(t *testing.T) {
	tests := []struct {
		name  string
		terms DealTerms
		field string
	}{
		{"missing deal type", DealTerms{InvestmentAmount: dec("100")}, "deal_type"},
		{"negative amount", DealTerms{InvestmentAmount: dec("-1"), Variant: &GrantTerms{}}, "investment_amount"},
		{"equity over 100", DealTerms{Variant: &EquityTerms{Percentage: dec("100.5")}}, "equity_percentage"},
		{"negative valuation", DealTerms{Variant: &EquityTerms{Valuation: dec("-5")}}, "valuation"},
		{"discount below zero", DealTerms{Variant: &SAFETerms{ConversionDiscount: dec("-0.1")}}, "conversion_discount"},
		{"interest over 100", DealTerms{Variant: &ConvertibleNoteTerms{InterestRate: dec("101")}}, "interest_rate"},
		{"return cap below 1", DealTerms{Variant: &RevenueShareTerms{ReturnCap: dec("0.9")}}, "return_cap"},
		{"bad frequency", DealTerms{Variant: &RevenueShareTerms{PaymentFrequency: "weekly"}}, "payment_frequency"},
		{"amount over cap", DealTerms{InvestmentAmount: dec("1000000000000000.01"), Variant: &GrantTerms{}}, "investment_amount"},
		{"amount huge exponent", DealTerms{InvestmentAmount: dec("1e5000000"), Variant: &GrantTerms{}}, "investment_amount"},
		{"amount tiny exponent", DealTerms{InvestmentAmount: dec("1e-5000000"), Variant: &GrantTerms{}}, "investment_amount"},
		{"amount below a cent", DealTerms{InvestmentAmount: dec("10.005"), Variant: &GrantTerms{}}, "investment_amount"},
		{"amount too many digits", DealTerms{InvestmentAmount: dec("1.000000000000000000000000000000001"), Variant: &GrantTerms{}}, "investment_amount"},
		{"valuation huge", DealTerms{Variant: &EquityTerms{Valuation: dec("1e40")}}, "valuation"},
		{"cap huge", DealTerms{Variant: &SAFETerms{ValuationCap: dec("9e99999")}}, "valuation_cap"},
		{"percent precision", DealTerms{Variant: &EquityTerms{Percentage: dec("10.12345")}}, "equity_percentage"},
		{"percent huge exponent", DealTerms{Variant: &ConvertibleNoteTerms{InterestRate: dec("1e999999")}}, "interest_rate"},
		{"return cap over 100", DealTerms{Variant: &RevenueShareTerms{ReturnCap: dec("100.5")}}, "return_cap"},
		{"return cap precision", DealTerms{Variant: &RevenueShareTerms{ReturnCap: dec("1.23456")}}, "return_cap"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.terms.Validate()
			var ve *apperrors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	t.Run("boundaries are inclusive", func(t *testing.T) {
		assert.NoError(t, DealTerms{Variant: &EquityTerms{Percentage: dec("0")}}.Validate())
		assert.NoError(t, DealTerms{Variant: &EquityTerms{Percentage: dec("100")}}.Validate())
		assert.NoError(t, DealTerms{Variant: &RevenueShareTerms{ReturnCap: dec("1")}}.Validate())
		assert.NoError(t, DealTerms{Variant: &RevenueShareTerms{ReturnCap: dec("100")}}.Validate())
		assert.NoError(t, DealTerms{InvestmentAmount: dec("1000000000000000"), Variant: &GrantTerms{}}.Validate())
		assert.NoError(t, DealTerms{InvestmentAmount: dec("1e15"), Variant: &GrantTerms{}}.Validate())
		assert.NoError(t, DealTerms{InvestmentAmount: dec("10.500"), Variant: &GrantTerms{}}.Validate())
		assert.NoError(t, DealTerms{Variant: &EquityTerms{Percentage: dec("12.3456")}}.Validate())
	})
}

func TestDealTerms_JSONRoundTrip(t *testing.T) {
	original := equityTerms()
	original.AdditionalTerms = "pro-rata rights"

	raw, err := json.Marshal(original)
	require.NoError(t, err)
	assert.JSONEq(t, `{"deal_type":"equity","investment_amount":"5000000","equity_percentage":"10","valuation":"50000000","additional_terms":"pro-rata rights"}`, string(raw))

	var decoded DealTerms
	require.NoError(t, json.Unmarshal(raw, &decoded))
	again, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(again))

	eq, ok := decoded.Variant.(*EquityTerms)
	require.True(t, ok)
	assert.True(t, eq.Percentage.Equal(*dec("10")))
	assert.Nil(t, eq.MinimumInvestment)
}

func TestDealTerms_EmptyIsDistinctFromZero(t *testing.T) {
	var empty DealTerms
	require.NoError(t, json.Unmarshal([]byte(`{}`), &empty))
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, DealType(""), empty.DealType())

	zero := DealTerms{InvestmentAmount: dec("0"), Variant: &GrantTerms{}}
	assert.False(t, zero.IsEmpty())
	assert.NoError(t, zero.Validate())
}

func TestDealTerms_Summary(t *testing.T) {
	tests := []struct {
		name  string
		terms DealTerms
		want  string
	}{
		{"empty", DealTerms{}, "No terms proposed"},
		{"equity", equityTerms(), "Equity: $5,000,000, 10% equity, $50,000,000 valuation"},
		{"grant", DealTerms{InvestmentAmount: dec("50000"), Variant: &GrantTerms{}}, "Grant: $50,000"},
		{
			"revenue share without amount",
			DealTerms{Variant: &RevenueShareTerms{RevenuePercentage: dec("5"), ReturnCap: dec("1.5"), PaymentFrequency: PaymentQuarterly}},
			"Revenue share: 5% of revenue, 1.5x return cap, paid quarterly",
		},
		{
			"safe",
			DealTerms{InvestmentAmount: dec("250000"), Variant: &SAFETerms{ValuationCap: dec("8000000"), ConversionDiscount: dec("20")}},
			"SAFE: $250,000, $8,000,000 cap, 20% discount",
		},
		{"cents", DealTerms{InvestmentAmount: dec("1500.5"), Variant: &GrantTerms{}}, "Grant: $1,500.50"},
		{"largest amount", DealTerms{InvestmentAmount: dec("1e15"), Variant: &GrantTerms{}}, "Grant: $1,000,000,000,000,000"},
		{"amount only", DealTerms{InvestmentAmount: dec("0.75")}, "Investment of $0.75"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.terms.Summary())
		})
	}
}

func TestUpdateTerms_RejectsOversizedAmount(t *testing.T) {
	room := newTestRoom(t)

	var terms DealTerms
	require.NoError(t, json.Unmarshal([]byte(`{"deal_type":"grant","investment_amount":"1e5000000"}`), &terms))

	change, err := room.UpdateTerms(founder, terms, t0.Add(time.Minute))

	require.Error(t, err)
	assert.Nil(t, change)
	var ve *apperrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "investment_amount", ve.Field)
	assert.True(t, room.Terms.IsEmpty())
	assert.Len(t, room.Activities, 1)
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "$0"},
		{"999", "$999"},
		{"5000000", "$5,000,000"},
		{"5e6", "$5,000,000"},
		{"1234.5", "$1,234.50"},
		{"0.005", "$0.01"},
		{"-42.25", "-$42.25"},
		{"12345678901234567890123", "$12345678901234567890123"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMoney(*dec(tt.in)))
		})
	}
}
