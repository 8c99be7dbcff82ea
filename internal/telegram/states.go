package telegram

import "sync"

// Шаги админских диалогов, требующих текстового ввода.
const (
	stateRejectReason = "entering_reject_reason"
	stateGrantTarget  = "entering_grant_target"
	stateGrantPlan    = "entering_grant_plan"
	stateGrantMonths  = "entering_grant_months"
	stateBlockTarget  = "entering_block_target"
)

// AdminState незавершённый диалог администратора: текущий шаг и
// накопленные аргументы. Живёт в памяти, перезапуск бота сбрасывает
// диалог, это допустимо.
type AdminState struct {
	Step      string
	PaymentID int64
	TargetID  int64
	Plan      string
}

// adminStates потокобезопасное хранилище диалогов по id администратора.
type adminStates struct {
	mu     sync.Mutex
	states map[int64]*AdminState
}

func newAdminStates() *adminStates {
	return &adminStates{states: make(map[int64]*AdminState)}
}

func (s *adminStates) get(adminID int64) (*AdminState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[adminID]
	return st, ok
}

func (s *adminStates) set(adminID int64, st *AdminState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[adminID] = st
}

func (s *adminStates) clear(adminID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, adminID)
}
