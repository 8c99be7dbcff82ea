package models

import "time"

// RegStep шаг пошаговой регистрации. Машина состояний явная:
// FIRST_NAME -> LAST_NAME -> ROOM -> FACULTY, каждый переход со своей
// валидацией.
type RegStep string

const (
	StepFirstName RegStep = "FIRST_NAME"
	StepLastName  RegStep = "LAST_NAME"
	StepRoom      RegStep = "ROOM"
	StepFaculty   RegStep = "FACULTY"
)

// RegState незавершённая регистрация пользователя: текущий шаг и
// накопленные промежуточные значения.
type RegState struct {
	UserID    int64
	Step      RegStep
	TmpFirst  string
	TmpLast   string
	CreatedAt time.Time
}
