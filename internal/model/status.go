package model

// Status описывает этап жизненного цикла договора.
type Status string

const (
	StatusListed       Status = "LISTED"
	StatusNegotiating  Status = "NEGOTIATING"
	StatusIntentSigned Status = "INTENT_SIGNED"
	StatusCancelled    Status = "CANCELLED"
	StatusContracted   Status = "CONTRACTED"
	StatusInProgress   Status = "IN_PROGRESS"
	StatusPaidComplete Status = "PAID_COMPLETE"
	StatusRegistered   Status = "REGISTERED"
	StatusMovedIn      Status = "MOVED_IN"
	StatusTerminated   Status = "TERMINATED"
)

// DefaultStatus присваивается новому договору, если статус не выбран.
const DefaultStatus = StatusInProgress

// Statuses перечисляет все статусы в порядке отображения.
var Statuses = []Status{
	StatusListed,
	StatusNegotiating,
	StatusIntentSigned,
	StatusCancelled,
	StatusContracted,
	StatusInProgress,
	StatusPaidComplete,
	StatusRegistered,
	StatusMovedIn,
	StatusTerminated,
}

// ForwardOrder перечисляет статусы основного пути в порядке продвижения.
var ForwardOrder = []Status{
	StatusListed,
	StatusNegotiating,
	StatusIntentSigned,
	StatusContracted,
	StatusInProgress,
	StatusPaidComplete,
	StatusRegistered,
	StatusMovedIn,
}

// StatusInfo содержит данные отображения статуса.
type StatusInfo struct {
	Label    string `json:"label"`
	Color    string `json:"color"`
	Terminal bool   `json:"terminal"`
}

// Info возвращает описание статуса. Второе значение false для неизвестного статуса.
func (s Status) Info() (StatusInfo, bool) {
	switch s {
	case StatusListed:
		return StatusInfo{Label: "매물 등록", Color: "gray"}, true
	case StatusNegotiating:
		return StatusInfo{Label: "협상 중", Color: "yellow"}, true
	case StatusIntentSigned:
		return StatusInfo{Label: "가계약", Color: "orange"}, true
	case StatusCancelled:
		return StatusInfo{Label: "계약 취소", Color: "red", Terminal: true}, true
	case StatusContracted:
		return StatusInfo{Label: "계약 체결", Color: "blue"}, true
	case StatusInProgress:
		return StatusInfo{Label: "계약 진행 중", Color: "teal"}, true
	case StatusPaidComplete:
		return StatusInfo{Label: "잔금 지급 완료", Color: "cyan"}, true
	case StatusRegistered:
		return StatusInfo{Label: "등기 완료", Color: "indigo"}, true
	case StatusMovedIn:
		return StatusInfo{Label: "입주 완료", Color: "green", Terminal: true}, true
	case StatusTerminated:
		return StatusInfo{Label: "계약 해지", Color: "purple", Terminal: true}, true
	}
	return StatusInfo{}, false
}

// Valid сообщает, входит ли статус в перечисление.
func (s Status) Valid() bool {
	_, ok := s.Info()
	return ok
}

// Terminal сообщает, является ли статус конечным.
func (s Status) Terminal() bool {
	info, ok := s.Info()
	return ok && info.Terminal
}

// Label возвращает подпись статуса или сам код для неизвестного значения.
func (s Status) Label() string {
	if info, ok := s.Info(); ok {
		return info.Label
	}
	return string(s)
}

// Successor возвращает следующий статус основного пути.
func (s Status) Successor() (Status, bool) {
	for i, st := range ForwardOrder {
		if st == s && i+1 < len(ForwardOrder) {
			return ForwardOrder[i+1], true
		}
	}
	return "", false
}

// Branch сообщает, является ли статус боковым завершением (отмена или расторжение).
func (s Status) Branch() bool {
	return s == StatusCancelled || s == StatusTerminated
}
