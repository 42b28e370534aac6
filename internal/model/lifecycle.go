package model

// 赛事生命周期状态（只允许按此顺序前向推进，completed为终态）
const (
	StatusAnnounced          = "announced"
	StatusRegistrationOpen   = "registration_open"
	StatusRegistrationClosed = "registration_closed"
	StatusActive             = "active"
	StatusCompleted          = "completed"
)

// statusOrder 状态在生命周期中的序号，序号越大越靠后
var statusOrder = map[string]int{
	StatusAnnounced:          0,
	StatusRegistrationOpen:   1,
	StatusRegistrationClosed: 2,
	StatusActive:             3,
	StatusCompleted:          4,
}

// IsValidStatus 是否为规范状态词汇
func IsValidStatus(s string) bool {
	_, ok := statusOrder[s]
	return ok
}

// CanTransition 仅当目标状态严格晚于当前状态时允许推进；
// 同状态或回退返回false（调用方按"skipped"计数，不算错误）。
func CanTransition(from, to string) bool {
	fromOrder, okFrom := statusOrder[from]
	toOrder, okTo := statusOrder[to]
	if !okFrom || !okTo {
		return false
	}
	return toOrder > fromOrder
}
