// Package plans описывает тарифную таблицу абонементов: коды планов,
// месячные цены, разрешённые дни недели и расчёт скидки за длительность.
// Таблица фиксированная, значения не зависят от конфигурации.
package plans

import "time"

// Code код тарифного плана.
type Code string

const (
	PlanA         Code = "A"   // Пн/Ср/Пт/Вс
	PlanB         Code = "B"   // Вт/Чт/Сб/Вс
	PlanUnlimited Code = "UNL" // Любой день
)

// Границы длительности абонемента в месяцах.
const (
	MonthsMin = 1
	MonthsMax = 9
)

// Месячные цены в гривнах.
var monthlyPrice = map[Code]int{
	PlanA:         119,
	PlanB:         119,
	PlanUnlimited: 229,
}

// Valid сообщает, известен ли код плана.
func Valid(c Code) bool {
	_, ok := monthlyPrice[c]
	return ok
}

// MonthlyPrice возвращает цену одного месяца в гривнах.
func MonthlyPrice(c Code) int {
	return monthlyPrice[c]
}

// ClampMonths приводит длительность к допустимому диапазону [1, 9].
func ClampMonths(m int) int {
	if m < MonthsMin {
		return MonthsMin
	}
	if m > MonthsMax {
		return MonthsMax
	}
	return m
}

// Discount возвращает процент скидки за длительность: 3% за каждый
// месяц сверх первого, не более 24%.
func Discount(months int) int {
	pct := (months - 1) * 3
	if pct < 0 {
		return 0
	}
	if pct > 24 {
		return 24
	}
	return pct
}

// Total считает итоговую сумму чека в гривнах с учётом скидки,
// округление до целого.
func Total(c Code, months int) int {
	base := monthlyPrice[c]
	pct := Discount(months)
	total := float64(base) * float64(months) * (1 - float64(pct)/100)
	return int(total + 0.5)
}

// AllowedOn сообщает, разрешает ли план посещение в данный день недели.
func AllowedOn(c Code, day time.Weekday) bool {
	switch c {
	case PlanUnlimited:
		return true
	case PlanA:
		return day == time.Monday || day == time.Wednesday ||
			day == time.Friday || day == time.Sunday
	case PlanB:
		return day == time.Tuesday || day == time.Thursday ||
			day == time.Saturday || day == time.Sunday
	}
	return false
}

// AllowedForFaculty сообщает, доступен ли план факультету.
// UNLIMITED недоступен ІСЗІ, остальные комбинации разрешены.
func AllowedForFaculty(faculty string, c Code) bool {
	if !Valid(c) {
		return false
	}
	if c == PlanUnlimited && faculty == "ІСЗІ" {
		return false
	}
	return true
}

// Name человекочитаемое название плана.
func Name(c Code) string {
	switch c {
	case PlanA:
		return "1 План"
	case PlanB:
		return "2 План"
	case PlanUnlimited:
		return "UNLIMITED"
	}
	return string(c)
}

// DaysText краткое описание разрешённых дней.
func DaysText(c Code) string {
	switch c {
	case PlanA:
		return "Пн/Ср/Пт/Нд"
	case PlanB:
		return "Вт/Чт/Сб/Нд"
	case PlanUnlimited:
		return "будь-який день"
	}
	return "—"
}

// Description строка "Відвідування: <дни>" для сообщений бота.
func Description(c Code) string {
	return "Відвідування: " + DaysText(c)
}
