package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	t0       = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	founder  = Actor{UserID: "f1", Name: "Fiona", Role: RoleFounder}
	investor = Actor{UserID: "i1", Name: "Ivan", Role: RoleInvestor}
	outsider = Actor{UserID: "x9", Name: "Mallory", Role: RoleInvestor}
)

func testParams() CreateParams {
	return CreateParams{
		ProjectID:      "proj-1",
		ProjectName:    "Solar Roofs",
		FounderUserID:  founder.UserID,
		FounderName:    founder.Name,
		InvestorUserID: investor.UserID,
		InvestorName:   investor.Name,
	}
}

func newTestRoom(t *testing.T) *DealRoom {
	t.Helper()
	change, err := NewDealRoom(testParams(), founder, t0)
	require.NoError(t, err)
	return change.Room
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func snapshot(t *testing.T, r *DealRoom) []byte {
	t.Helper()
	b, err := json.Marshal(r)
	require.NoError(t, err)
	return b
}

func equityTerms() DealTerms {
	return DealTerms{
		InvestmentAmount: dec("5000000"),
		Variant:          &EquityTerms{Percentage: dec("10"), Valuation: dec("50000000")},
	}
}
