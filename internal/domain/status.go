package domain

import "strings"

var transitions = map[DealStatus][]DealStatus{
	DealStatusPending:      {DealStatusNegotiation, DealStatusRejected},
	DealStatusNegotiation:  {DealStatusDueDiligence},
	DealStatusDueDiligence: {DealStatusNegotiation, DealStatusSigned, DealStatusRejected},
	DealStatusSigned:       {DealStatusClosed},
	DealStatusClosed:       {},
	DealStatusRejected:     {},
}

func AllStatuses() []DealStatus {
	return []DealStatus{
		DealStatusPending,
		DealStatusActive,
		DealStatusNegotiation,
		DealStatusDueDiligence,
		DealStatusSigned,
		DealStatusClosed,
		DealStatusRejected,
	}
}

func (s DealStatus) IsValid() bool {
	for _, known := range AllStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

func (s DealStatus) IsTerminal() bool {
	return s == DealStatusClosed || s == DealStatusRejected
}

// normalize: active ведет себя как pending.
func (s DealStatus) normalize() DealStatus {
	if s == DealStatusActive {
		return DealStatusPending
	}
	return s
}

// Label: человекочитаемое название для системных сообщений.
func (s DealStatus) Label() string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// CanTransition проверяет ребро автомата статусов. Переход в тот же статус запрещен.
func CanTransition(from, to DealStatus) bool {
	from, to = from.normalize(), to.normalize()
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses: допустимые цели из текущего статуса.
func NextStatuses(from DealStatus) []DealStatus {
	return append([]DealStatus{}, transitions[from.normalize()]...)
}
