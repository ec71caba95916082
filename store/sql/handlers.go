package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// idField gives handlers access to the surrogate id every record carries.
type idField interface {
	getID() string
	setID(id string)
}

func (r *settingsRecord) getID() string { return r.ID }
func (r *settingsRecord) setID(id string) { r.ID = id }
func (r *creditRecord) getID() string { return r.ID }
func (r *creditRecord) setID(id string) { r.ID = id }
func (r *ownershipRecord) getID() string { return r.ID }
func (r *ownershipRecord) setID(id string) { r.ID = id }
func (r *minterRecord) getID() string { return r.ID }
func (r *minterRecord) setID(id string) { r.ID = id }
func (r *rateRecord) getID() string { return r.ID }
func (r *rateRecord) setID(id string) { r.ID = id }
func (r *marketSettingsRecord) getID() string { return r.ID }
func (r *marketSettingsRecord) setID(id string) { r.ID = id }
func (r *purchaseRecord) getID() string { return r.ID }
func (r *purchaseRecord) setID(id string) { r.ID = id }
func (r *balanceRecord) getID() string { return r.ID }
func (r *balanceRecord) setID(id string) { r.ID = id }
func (r *outboxRecord) getID() string { return r.ID }
func (r *outboxRecord) setID(id string) { r.ID = id }

func recordHandlers[T idField](newRecord func() T) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			if isNilRecord(record) {
				return uuid.Nil
			}
			return parseUUID(record.getID())
		},
		SetID: func(record T, id uuid.UUID) {
			if isNilRecord(record) {
				return
			}
			record.setID(id.String())
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record T) string {
			if isNilRecord(record) {
				return ""
			}
			return strings.TrimSpace(record.getID())
		},
	}
}

func settingsHandlers() repository.ModelHandlers[*settingsRecord] {
	return recordHandlers(func() *settingsRecord { return &settingsRecord{} })
}

func creditHandlers() repository.ModelHandlers[*creditRecord] {
	return recordHandlers(func() *creditRecord { return &creditRecord{} })
}

func ownershipHandlers() repository.ModelHandlers[*ownershipRecord] {
	return recordHandlers(func() *ownershipRecord { return &ownershipRecord{} })
}

func minterHandlers() repository.ModelHandlers[*minterRecord] {
	return recordHandlers(func() *minterRecord { return &minterRecord{} })
}

func rateHandlers() repository.ModelHandlers[*rateRecord] {
	return recordHandlers(func() *rateRecord { return &rateRecord{} })
}

func marketSettingsHandlers() repository.ModelHandlers[*marketSettingsRecord] {
	return recordHandlers(func() *marketSettingsRecord { return &marketSettingsRecord{} })
}

func purchaseHandlers() repository.ModelHandlers[*purchaseRecord] {
	return recordHandlers(func() *purchaseRecord { return &purchaseRecord{} })
}

func balanceHandlers() repository.ModelHandlers[*balanceRecord] {
	return recordHandlers(func() *balanceRecord { return &balanceRecord{} })
}

func outboxHandlers() repository.ModelHandlers[*outboxRecord] {
	return recordHandlers(func() *outboxRecord { return &outboxRecord{} })
}

func isNilRecord(record idField) bool {
	switch typed := record.(type) {
	case nil:
		return true
	case *settingsRecord:
		return typed == nil
	case *creditRecord:
		return typed == nil
	case *ownershipRecord:
		return typed == nil
	case *minterRecord:
		return typed == nil
	case *rateRecord:
		return typed == nil
	case *marketSettingsRecord:
		return typed == nil
	case *purchaseRecord:
		return typed == nil
	case *balanceRecord:
		return typed == nil
	case *outboxRecord:
		return typed == nil
	default:
		return false
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
