package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"CogitoRadio/internal/model"
	cerrors "CogitoRadio/pkg/errors"
)

// ListMedications 按 profile 查询药物
func (s *ReminderService) ListMedications(ctx context.Context, profileID string) ([]model.Medication, error) {
	if profileID == "" {
		return nil, cerrors.ProfileIDMissing
	}

	var meds []model.Medication
	err := s.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("name ASC").
		Find(&meds).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	return meds, nil
}

// CreateMedication 创建药物
func (s *ReminderService) CreateMedication(ctx context.Context, req model.CreateMedicationRequest) (*model.Medication, error) {
	if req.ProfileID == "" {
		return nil, cerrors.ProfileIDMissing
	}
	if req.Name == "" {
		return nil, cerrors.MedicationNameMissing
	}

	med := model.Medication{
		ProfileID:    req.ProfileID,
		Name:         req.Name,
		Dosage:       req.Dosage,
		Instructions: req.Instructions,
	}

	if err := s.db.WithContext(ctx).Create(&med).Error; err != nil {
		return nil, fmt.Errorf("failed to create medication: %w", err)
	}
	return &med, nil
}

// UpdateMedication 更新药物
func (s *ReminderService) UpdateMedication(ctx context.Context, id int64, req model.UpdateMedicationRequest) (*model.Medication, error) {
	var med model.Medication
	err := s.db.WithContext(ctx).First(&med, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, cerrors.MedicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get medication: %w", err)
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		if *req.Name == "" {
			return nil, cerrors.MedicationNameMissing
		}
		updates["name"] = *req.Name
	}
	if req.Dosage != nil {
		updates["dosage"] = *req.Dosage
	}
	if req.Instructions != nil {
		updates["instructions"] = *req.Instructions
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&med).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update medication: %w", err)
		}
	}

	return &med, nil
}
