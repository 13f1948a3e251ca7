package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	apperrors "deal_room/pkg/errors"
)

type DealType string

const (
	DealTypeEquity          DealType = "equity"
	DealTypeConvertibleNote DealType = "convertible_note"
	DealTypeSAFE            DealType = "safe"
	DealTypeRevenueShare    DealType = "revenue_share"
	DealTypeGrant           DealType = "grant"
	DealTypeOther           DealType = "other"
)

func (t DealType) IsValid() bool {
	switch t {
	case DealTypeEquity, DealTypeConvertibleNote, DealTypeSAFE, DealTypeRevenueShare, DealTypeGrant, DealTypeOther:
		return true
	}
	return false
}

type PaymentFrequency string

const (
	PaymentMonthly   PaymentFrequency = "monthly"
	PaymentQuarterly PaymentFrequency = "quarterly"
	PaymentAnnually  PaymentFrequency = "annually"
)

func (f PaymentFrequency) IsValid() bool {
	return f == PaymentMonthly || f == PaymentQuarterly || f == PaymentAnnually
}

// TermsVariant: закрытое множество вариантов условий, по одному на тип сделки.
type TermsVariant interface {
	DealType() DealType
	validate() error
	fill(p *TermsPayload)
	summaryParts() []string
}

// DealTerms: текущее предложение по сделке. Nil-поля означают «еще не предложено».
// Variant == nil только у пустых условий новой комнаты.
type DealTerms struct {
	InvestmentAmount *decimal.Decimal
	AdditionalTerms  string
	Variant          TermsVariant
}

type EquityTerms struct {
	Percentage        *decimal.Decimal
	Valuation         *decimal.Decimal
	MinimumInvestment *decimal.Decimal
}

type ConvertibleNoteTerms struct {
	ValuationCap       *decimal.Decimal
	ConversionDiscount *decimal.Decimal
	InterestRate       *decimal.Decimal
	MaturityDate       *time.Time
}

type SAFETerms struct {
	ValuationCap       *decimal.Decimal
	ConversionDiscount *decimal.Decimal
	MaturityDate       *time.Time
}

type RevenueShareTerms struct {
	RevenuePercentage *decimal.Decimal
	ReturnCap         *decimal.Decimal
	PaymentFrequency  PaymentFrequency
}

type GrantTerms struct{}

type OtherTerms struct{}

// TermsPayload: плоское представление условий на проводе и в снапшоте.
type TermsPayload struct {
	DealType           DealType         `json:"deal_type,omitempty"`
	InvestmentAmount   *decimal.Decimal `json:"investment_amount,omitempty"`
	EquityPercentage   *decimal.Decimal `json:"equity_percentage,omitempty"`
	Valuation          *decimal.Decimal `json:"valuation,omitempty"`
	MinimumInvestment  *decimal.Decimal `json:"minimum_investment,omitempty"`
	ValuationCap       *decimal.Decimal `json:"valuation_cap,omitempty"`
	ConversionDiscount *decimal.Decimal `json:"conversion_discount,omitempty"`
	InterestRate       *decimal.Decimal `json:"interest_rate,omitempty"`
	MaturityDate       *time.Time       `json:"maturity_date,omitempty"`
	RevenuePercentage  *decimal.Decimal `json:"revenue_percentage,omitempty"`
	ReturnCap          *decimal.Decimal `json:"return_cap,omitempty"`
	PaymentFrequency   PaymentFrequency `json:"payment_frequency,omitempty"`
	AdditionalTerms    string           `json:"additional_terms,omitempty"`
}

var variantFields = map[DealType][]string{
	DealTypeEquity:          {"equity_percentage", "valuation", "minimum_investment"},
	DealTypeConvertibleNote: {"valuation_cap", "conversion_discount", "interest_rate", "maturity_date"},
	DealTypeSAFE:            {"valuation_cap", "conversion_discount", "maturity_date"},
	DealTypeRevenueShare:    {"revenue_percentage", "return_cap", "payment_frequency"},
	DealTypeGrant:           {},
	DealTypeOther:           {},
}

func (p TermsPayload) presentFields() []string {
	var fields []string
	add := func(name string, present bool) {
		if present {
			fields = append(fields, name)
		}
	}
	add("equity_percentage", p.EquityPercentage != nil)
	add("valuation", p.Valuation != nil)
	add("minimum_investment", p.MinimumInvestment != nil)
	add("valuation_cap", p.ValuationCap != nil)
	add("conversion_discount", p.ConversionDiscount != nil)
	add("interest_rate", p.InterestRate != nil)
	add("maturity_date", p.MaturityDate != nil)
	add("revenue_percentage", p.RevenuePercentage != nil)
	add("return_cap", p.ReturnCap != nil)
	add("payment_frequency", p.PaymentFrequency != "")
	return fields
}

// ToTerms собирает вариант по deal_type. Поле чужого типа сделки считается ошибкой валидации.
// Диапазоны значений проверяет Validate.
func (p TermsPayload) ToTerms() (DealTerms, error) {
	present := p.presentFields()

	if p.DealType == "" {
		if len(present) > 0 {
			return DealTerms{}, apperrors.NewValidationError("deal_type", "is required when type-specific fields are set")
		}
		return DealTerms{InvestmentAmount: p.InvestmentAmount, AdditionalTerms: p.AdditionalTerms}, nil
	}

	allowed, ok := variantFields[p.DealType]
	if !ok {
		return DealTerms{}, apperrors.NewValidationError("deal_type", fmt.Sprintf("unknown deal type %q", p.DealType))
	}
	for _, field := range present {
		if !contains(allowed, field) {
			return DealTerms{}, apperrors.NewValidationError(field, fmt.Sprintf("not applicable to deal type %q", p.DealType))
		}
	}

	terms := DealTerms{InvestmentAmount: p.InvestmentAmount, AdditionalTerms: p.AdditionalTerms}
	switch p.DealType {
	case DealTypeEquity:
		terms.Variant = &EquityTerms{Percentage: p.EquityPercentage, Valuation: p.Valuation, MinimumInvestment: p.MinimumInvestment}
	case DealTypeConvertibleNote:
		terms.Variant = &ConvertibleNoteTerms{ValuationCap: p.ValuationCap, ConversionDiscount: p.ConversionDiscount, InterestRate: p.InterestRate, MaturityDate: p.MaturityDate}
	case DealTypeSAFE:
		terms.Variant = &SAFETerms{ValuationCap: p.ValuationCap, ConversionDiscount: p.ConversionDiscount, MaturityDate: p.MaturityDate}
	case DealTypeRevenueShare:
		terms.Variant = &RevenueShareTerms{RevenuePercentage: p.RevenuePercentage, ReturnCap: p.ReturnCap, PaymentFrequency: p.PaymentFrequency}
	case DealTypeGrant:
		terms.Variant = &GrantTerms{}
	case DealTypeOther:
		terms.Variant = &OtherTerms{}
	}
	return terms, nil
}

func (t DealTerms) Payload() TermsPayload {
	p := TermsPayload{
		DealType:         t.DealType(),
		InvestmentAmount: t.InvestmentAmount,
		AdditionalTerms:  t.AdditionalTerms,
	}
	if t.Variant != nil {
		t.Variant.fill(&p)
	}
	return p
}

func (t DealTerms) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Payload())
}

const unknownFieldPrefix = "json: unknown field "

func (t *DealTerms) UnmarshalJSON(data []byte) error {
	var p TermsPayload
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		if rest, ok := strings.CutPrefix(err.Error(), unknownFieldPrefix); ok {
			field, uerr := strconv.Unquote(rest)
			if uerr != nil {
				field = rest
			}
			return apperrors.NewValidationError(field, "unknown field")
		}
		return apperrors.NewValidationError("terms", err.Error())
	}
	terms, err := p.ToTerms()
	if err != nil {
		return err
	}
	*t = terms
	return nil
}

func (t DealTerms) DealType() DealType {
	if t.Variant == nil {
		return ""
	}
	return t.Variant.DealType()
}

func (t DealTerms) IsEmpty() bool {
	return t.Variant == nil && t.InvestmentAmount == nil && t.AdditionalTerms == ""
}

// Validate проверяет условия, предлагаемые участником: тип сделки обязателен.
func (t DealTerms) Validate() error {
	if t.Variant == nil {
		return apperrors.NewValidationError("deal_type", "is required")
	}
	if !t.Variant.DealType().IsValid() {
		return apperrors.NewValidationError("deal_type", fmt.Sprintf("unknown deal type %q", t.Variant.DealType()))
	}
	if err := checkMoney("investment_amount", t.InvestmentAmount); err != nil {
		return err
	}
	return t.Variant.validate()
}

func (e *EquityTerms) DealType() DealType { return DealTypeEquity }

func (e *EquityTerms) validate() error {
	if err := checkPercent("equity_percentage", e.Percentage); err != nil {
		return err
	}
	if err := checkMoney("valuation", e.Valuation); err != nil {
		return err
	}
	return checkMoney("minimum_investment", e.MinimumInvestment)
}

func (e *EquityTerms) fill(p *TermsPayload) {
	p.EquityPercentage = e.Percentage
	p.Valuation = e.Valuation
	p.MinimumInvestment = e.MinimumInvestment
}

func (e *EquityTerms) summaryParts() []string {
	var parts []string
	if e.Percentage != nil {
		parts = append(parts, formatPercent(e.Percentage)+" equity")
	}
	if e.Valuation != nil {
		parts = append(parts, FormatMoney(*e.Valuation)+" valuation")
	}
	if e.MinimumInvestment != nil {
		parts = append(parts, "minimum "+FormatMoney(*e.MinimumInvestment))
	}
	return parts
}

func (c *ConvertibleNoteTerms) DealType() DealType { return DealTypeConvertibleNote }

func (c *ConvertibleNoteTerms) validate() error {
	if err := checkMoney("valuation_cap", c.ValuationCap); err != nil {
		return err
	}
	if err := checkPercent("conversion_discount", c.ConversionDiscount); err != nil {
		return err
	}
	return checkPercent("interest_rate", c.InterestRate)
}

func (c *ConvertibleNoteTerms) fill(p *TermsPayload) {
	p.ValuationCap = c.ValuationCap
	p.ConversionDiscount = c.ConversionDiscount
	p.InterestRate = c.InterestRate
	p.MaturityDate = c.MaturityDate
}

func (c *ConvertibleNoteTerms) summaryParts() []string {
	parts := convertibleParts(c.ValuationCap, c.ConversionDiscount)
	if c.InterestRate != nil {
		parts = append(parts, formatPercent(c.InterestRate)+" interest")
	}
	if c.MaturityDate != nil {
		parts = append(parts, "matures "+c.MaturityDate.Format("2006-01-02"))
	}
	return parts
}

func (s *SAFETerms) DealType() DealType { return DealTypeSAFE }

func (s *SAFETerms) validate() error {
	if err := checkMoney("valuation_cap", s.ValuationCap); err != nil {
		return err
	}
	return checkPercent("conversion_discount", s.ConversionDiscount)
}

func (s *SAFETerms) fill(p *TermsPayload) {
	p.ValuationCap = s.ValuationCap
	p.ConversionDiscount = s.ConversionDiscount
	p.MaturityDate = s.MaturityDate
}

func (s *SAFETerms) summaryParts() []string {
	parts := convertibleParts(s.ValuationCap, s.ConversionDiscount)
	if s.MaturityDate != nil {
		parts = append(parts, "matures "+s.MaturityDate.Format("2006-01-02"))
	}
	return parts
}

func (r *RevenueShareTerms) DealType() DealType { return DealTypeRevenueShare }

func (r *RevenueShareTerms) validate() error {
	if err := checkPercent("revenue_percentage", r.RevenuePercentage); err != nil {
		return err
	}
	if r.ReturnCap != nil {
		if err := checkScale("return_cap", r.ReturnCap, maxRatioPlaces); err != nil {
			return err
		}
		if r.ReturnCap.LessThan(decimal.NewFromInt(1)) || r.ReturnCap.GreaterThan(maxReturnCap) {
			return apperrors.NewValidationError("return_cap", "must be between 1 and 100")
		}
	}
	if r.PaymentFrequency != "" && !r.PaymentFrequency.IsValid() {
		return apperrors.NewValidationError("payment_frequency", fmt.Sprintf("unknown frequency %q", r.PaymentFrequency))
	}
	return nil
}

func (r *RevenueShareTerms) fill(p *TermsPayload) {
	p.RevenuePercentage = r.RevenuePercentage
	p.ReturnCap = r.ReturnCap
	p.PaymentFrequency = r.PaymentFrequency
}

func (r *RevenueShareTerms) summaryParts() []string {
	var parts []string
	if r.RevenuePercentage != nil {
		parts = append(parts, formatPercent(r.RevenuePercentage)+" of revenue")
	}
	if r.ReturnCap != nil {
		parts = append(parts, r.ReturnCap.String()+"x return cap")
	}
	if r.PaymentFrequency != "" {
		parts = append(parts, "paid "+string(r.PaymentFrequency))
	}
	return parts
}

func (*GrantTerms) DealType() DealType     { return DealTypeGrant }
func (*GrantTerms) validate() error        { return nil }
func (*GrantTerms) fill(*TermsPayload)     {}
func (*GrantTerms) summaryParts() []string { return nil }
func (*OtherTerms) DealType() DealType     { return DealTypeOther }
func (*OtherTerms) validate() error        { return nil }
func (*OtherTerms) fill(*TermsPayload)     {}
func (*OtherTerms) summaryParts() []string { return nil }

var dealTypeLabels = map[DealType]string{
	DealTypeEquity:          "Equity",
	DealTypeConvertibleNote: "Convertible note",
	DealTypeSAFE:            "SAFE",
	DealTypeRevenueShare:    "Revenue share",
	DealTypeGrant:           "Grant",
	DealTypeOther:           "Other",
}

func (t DealType) Label() string {
	if label, ok := dealTypeLabels[t]; ok {
		return label
	}
	return string(t)
}

// Summary: однострочное описание условий для системных сообщений и уведомлений.
func (t DealTerms) Summary() string {
	if t.Variant == nil {
		if t.InvestmentAmount == nil {
			return "No terms proposed"
		}
		return "Investment of " + FormatMoney(*t.InvestmentAmount)
	}

	var parts []string
	if t.InvestmentAmount != nil {
		parts = append(parts, FormatMoney(*t.InvestmentAmount))
	}
	parts = append(parts, t.Variant.summaryParts()...)
	if len(parts) == 0 {
		return t.DealType().Label()
	}
	return t.DealType().Label() + ": " + strings.Join(parts, ", ")
}

var moneyPrinter = message.NewPrinter(language.English)

// FormatMoney печатает сумму с разделителями разрядов, центы только у дробных сумм.
// Целая часть за пределами int64 печатается без разделителей.
func FormatMoney(d decimal.Decimal) string {
	places := int32(0)
	if !d.IsInteger() {
		places = moneyPlaces
	}
	fixed := d.StringFixed(places)

	sign := ""
	if rest, ok := strings.CutPrefix(fixed, "-"); ok {
		sign, fixed = "-", rest
	}
	whole, cents, hasCents := strings.Cut(fixed, ".")
	if n, err := strconv.ParseInt(whole, 10, 64); err == nil {
		whole = moneyPrinter.Sprintf("%d", n)
	}
	if hasCents {
		return sign + "$" + whole + "." + cents
	}
	return sign + "$" + whole
}

func formatPercent(d *decimal.Decimal) string {
	return d.String() + "%"
}

func convertibleParts(valuationCap, discount *decimal.Decimal) []string {
	var parts []string
	if valuationCap != nil {
		parts = append(parts, FormatMoney(*valuationCap)+" cap")
	}
	if discount != nil {
		parts = append(parts, formatPercent(discount)+" discount")
	}
	return parts
}

const (
	moneyPlaces    = 2
	maxRatioPlaces = 4
	// maxDigits ограничивает мантиссу и экспоненту до любой арифметики:
	// сравнение и округление decimal масштабируют big.Int на 10^exp.
	maxDigits = 32
)

var (
	hundred      = decimal.NewFromInt(100)
	maxMoney     = decimal.New(1, 15)
	maxReturnCap = hundred
)

// checkScale отсекает значения, слишком длинные или с лишними знаками после запятой.
func checkScale(field string, v *decimal.Decimal, places int32) error {
	exp := v.Exponent()
	if v.NumDigits() > maxDigits || exp > maxDigits || exp < -maxDigits {
		return apperrors.NewValidationError(field, "is out of range")
	}
	if !v.Round(places).Equal(*v) {
		return apperrors.NewValidationError(field, fmt.Sprintf("must have at most %d decimal places", places))
	}
	return nil
}

func checkPercent(field string, v *decimal.Decimal) error {
	if v == nil {
		return nil
	}
	if err := checkScale(field, v, maxRatioPlaces); err != nil {
		return err
	}
	if v.IsNegative() || v.GreaterThan(hundred) {
		return apperrors.NewValidationError(field, "must be between 0 and 100")
	}
	return nil
}

func checkMoney(field string, v *decimal.Decimal) error {
	if v == nil {
		return nil
	}
	return ValidateAmount(field, *v)
}

// ValidateAmount: сумма в долларах от 0 до 10^15 с точностью до цента.
func ValidateAmount(field string, v decimal.Decimal) error {
	if err := checkScale(field, &v, moneyPlaces); err != nil {
		return err
	}
	if v.IsNegative() {
		return apperrors.NewValidationError(field, "must not be negative")
	}
	if v.GreaterThan(maxMoney) {
		return apperrors.NewValidationError(field, "must not exceed 1,000,000,000,000,000")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
