package session

import (
	"testing"

	"CogitoRadio/internal/model"
)

func TestBuildAnnouncementLabelOnly(t *testing.T) {
	got := BuildAnnouncement(model.ReminderSnapshot{Label: "drink water"})
	want := "Reminder: drink water."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuildAnnouncementWithMedication(t *testing.T) {
	got := BuildAnnouncement(model.ReminderSnapshot{
		Label: "morning pills",
		Medication: &model.MedicationSnapshot{
			Name:         "Metformin",
			Dosage:       "500mg",
			Instructions: "Take with food.",
		},
	})
	want := "Reminder: morning pills. Medication: Metformin, 500mg. Take with food."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuildAnnouncementMedicationWithoutDosage(t *testing.T) {
	got := BuildAnnouncement(model.ReminderSnapshot{
		Label:      "evening pills",
		Medication: &model.MedicationSnapshot{Name: "Aspirin"},
	})
	want := "Reminder: evening pills. Medication: Aspirin."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
