package domain

// CanAct: роль и идентификатор должны совпасть с одной из сторон сделки.
// Вызывается на каждом изменении по свежезагруженному снапшоту.
func CanAct(room *DealRoom, actorUserID string, actorRole Role) bool {
	if room == nil || actorUserID == "" || actorUserID == SystemUserID {
		return false
	}
	switch actorRole {
	case RoleFounder:
		return actorUserID == room.FounderUserID
	case RoleInvestor:
		return actorUserID == room.InvestorUserID
	}
	return false
}

// IsParticipant не зависит от роли: используется архивацией и чтением.
func IsParticipant(room *DealRoom, userID string) bool {
	if room == nil {
		return false
	}
	_, ok := room.RoleOf(userID)
	return ok
}
