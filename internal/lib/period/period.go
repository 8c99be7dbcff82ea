// Package period содержит чистую арифметику окон абонементов.
// Правило наращивания: новый интервал начинается не раньше конца
// последнего существующего, поэтому купленное время всегда суммируется
// и не зависит от порядка покупок.
package period

import "time"

// Stack возвращает полуоткрытое окно [start, end) для нового периода в
// months месяцев. Начало — max(now, lastEnd + 1s): новый интервал
// никогда не перекрывает уже выданный будущий, а встаёт в очередь за ним.
func Stack(now time.Time, lastEnd *time.Time, months int) (start, end time.Time) {
	start = now
	if lastEnd != nil {
		queued := lastEnd.Add(time.Second)
		if queued.After(start) {
			start = queued
		}
	}
	end = start.AddDate(0, months, 0)
	return start, end
}
