package session

import (
	"fmt"
	"strings"

	"CogitoRadio/internal/model"
)

// BuildAnnouncement 把提醒渲染成播报文本。关联了药品时带上
// 名称、剂量和服用说明，否则只播报标签。
func BuildAnnouncement(r model.ReminderSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reminder: %s.", r.Label)

	if r.Medication != nil {
		med := r.Medication
		fmt.Fprintf(&b, " Medication: %s", med.Name)
		if med.Dosage != "" {
			fmt.Fprintf(&b, ", %s", med.Dosage)
		}
		b.WriteString(".")
		if med.Instructions != "" {
			fmt.Fprintf(&b, " %s", med.Instructions)
		}
	}

	return b.String()
}
