package recurrence

// 重复模式计算：给定当前到期时间和模式，算出下一次到期时间。
// snooze 以计算时刻为锚点（是对确认时刻的顺延，不是对原计划的顺延）。

import (
	"time"

	"CogitoRadio/internal/model"
)

// DefaultSnoozeMinutes snooze 分钟数非法时的兜底值
const DefaultSnoozeMinutes = 10

// NextDueTime 计算下一次到期时间。第二个返回值为 false 表示不再有下一次。
// now 仅在 snooze 分支使用，测试时注入固定时钟即可。
func NextDueTime(current time.Time, mode model.RecurrenceMode, snoozeMinutes int, now func() time.Time) (time.Time, bool) {
	switch mode {
	case model.RecurrenceDaily:
		return current.Add(24 * time.Hour), true
	case model.RecurrenceHourly:
		return current.Add(60 * time.Minute), true
	case model.RecurrenceSnooze:
		if snoozeMinutes <= 0 {
			snoozeMinutes = DefaultSnoozeMinutes
		}
		return now().Add(time.Duration(snoozeMinutes) * time.Minute), true
	default: // none 或未知模式均视为终止
		return time.Time{}, false
	}
}
