package store

import "beyondcare/pkg/domain"

// Store defines persistence operations for users, reports and history.
//
// Report lookups that take an ownerID are ownership-scoped: a report id that
// exists under a different owner behaves exactly like a missing id, so the
// store never leaks other users' records.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// reports (append-only; newest first)
	SaveReport(domain.Report) error
	ListReportsByOwner(ownerID string) ([]domain.Report, error)
	GetReportByOwner(id, ownerID string) (domain.Report, bool, error)
	DeleteReport(id string) error

	// history (append-only; newest first)
	AppendHistory(domain.HistoryEntry) error
	ListHistoryByOwner(ownerID string, limit int) ([]domain.HistoryEntry, error)
}
