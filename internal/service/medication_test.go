package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"CogitoRadio/internal/model"
	cerrors "CogitoRadio/pkg/errors"
)

func TestMedicationLifecycle(t *testing.T) {
	initSnowflake(t)
	db := newTestDB(t)
	svc := NewReminderService(db)
	ctx := context.Background()

	med, err := svc.CreateMedication(ctx, model.CreateMedicationRequest{
		ProfileID:    "p1",
		Name:         "Metformin",
		Dosage:       "500mg",
		Instructions: "Take with food.",
	})
	require.NoError(t, err)
	require.NotZero(t, med.ID)

	name := "Metformin XR"
	updated, err := svc.UpdateMedication(ctx, med.ID, model.UpdateMedicationRequest{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Metformin XR", updated.Name)
	require.Equal(t, "500mg", updated.Dosage)

	meds, err := svc.ListMedications(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, meds, 1)

	meds, err = svc.ListMedications(ctx, "other")
	require.NoError(t, err)
	require.Empty(t, meds)
}

func TestMedicationValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewReminderService(db)
	ctx := context.Background()

	_, err := svc.CreateMedication(ctx, model.CreateMedicationRequest{ProfileID: "p1"})
	require.ErrorIs(t, err, cerrors.MedicationNameMissing)

	_, err = svc.CreateMedication(ctx, model.CreateMedicationRequest{Name: "Aspirin"})
	require.ErrorIs(t, err, cerrors.ProfileIDMissing)

	_, err = svc.UpdateMedication(ctx, 999, model.UpdateMedicationRequest{})
	require.ErrorIs(t, err, cerrors.MedicationNotFound)

	_, err = svc.ListMedications(ctx, "")
	require.ErrorIs(t, err, cerrors.ProfileIDMissing)
}

func TestReminderSnapshotCarriesMedication(t *testing.T) {
	initSnowflake(t)
	db := newTestDB(t)
	svc := NewReminderService(db)
	ctx := context.Background()

	med, err := svc.CreateMedication(ctx, model.CreateMedicationRequest{
		ProfileID: "p1",
		Name:      "Metformin",
		Dosage:    "500mg",
	})
	require.NoError(t, err)

	r, err := svc.Create(ctx, model.CreateReminderRequest{
		ProfileID:    "p1",
		Label:        "morning pills",
		Recurrence:   model.RecurrenceDaily,
		MedicationID: &med.ID,
	})
	require.NoError(t, err)

	loaded, err := svc.Get(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Medication)

	snap := model.NewReminderSnapshot(loaded)
	require.NotNil(t, snap.Medication)
	require.Equal(t, "Metformin", snap.Medication.Name)
	require.Equal(t, "500mg", snap.Medication.Dosage)
}
