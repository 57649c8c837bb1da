package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"beyondcare/pkg/domain"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

type ReportModel struct {
	ID               string `gorm:"primaryKey"`
	OwnerID          string `gorm:"not null;index"`
	OriginalFilename string `gorm:"not null"`
	StoredFilename   string `gorm:"uniqueIndex;not null"`
	MediaType        string
	SizeBytes        int64          `gorm:"not null"`
	Summary          string         `gorm:"type:text"`
	KeyFindings      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt        time.Time      `gorm:"not null;index"`
}

type HistoryModel struct {
	ID        string    `gorm:"primaryKey"`
	OwnerID   string    `gorm:"not null;index"`
	Type      string    `gorm:"not null"`
	Input     string    `gorm:"type:text"`
	Response  string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}

func reportToModel(r domain.Report) ReportModel {
	var findings datatypes.JSON
	if len(r.KeyFindings) > 0 {
		if raw, err := json.Marshal(r.KeyFindings); err == nil {
			findings = datatypes.JSON(raw)
		}
	}
	return ReportModel{
		ID:               r.ID,
		OwnerID:          r.OwnerID,
		OriginalFilename: r.OriginalFilename,
		StoredFilename:   r.StoredFilename,
		MediaType:        r.MediaType,
		SizeBytes:        r.SizeBytes,
		Summary:          r.Summary,
		KeyFindings:      findings,
		CreatedAt:        r.CreatedAt,
	}
}

func reportFromModel(m ReportModel) domain.Report {
	var findings []string
	if len(m.KeyFindings) > 0 {
		_ = json.Unmarshal(m.KeyFindings, &findings)
	}
	return domain.Report{
		ID:               m.ID,
		OwnerID:          m.OwnerID,
		OriginalFilename: m.OriginalFilename,
		StoredFilename:   m.StoredFilename,
		MediaType:        m.MediaType,
		SizeBytes:        m.SizeBytes,
		Summary:          m.Summary,
		KeyFindings:      findings,
		CreatedAt:        m.CreatedAt,
	}
}

func historyToModel(h domain.HistoryEntry) HistoryModel {
	return HistoryModel{
		ID:        h.ID,
		OwnerID:   h.OwnerID,
		Type:      string(h.Type),
		Input:     h.Input,
		Response:  h.Response,
		CreatedAt: h.CreatedAt,
	}
}

func historyFromModel(m HistoryModel) domain.HistoryEntry {
	return domain.HistoryEntry{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Type:      domain.InteractionType(m.Type),
		Input:     m.Input,
		Response:  m.Response,
		CreatedAt: m.CreatedAt,
	}
}
