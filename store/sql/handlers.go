package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func subscriptionHandlers() repository.ModelHandlers[*webhookSubscriptionRecord] {
	return repository.ModelHandlers[*webhookSubscriptionRecord]{
		NewRecord: func() *webhookSubscriptionRecord {
			return &webhookSubscriptionRecord{}
		},
		GetID: func(record *webhookSubscriptionRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *webhookSubscriptionRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *webhookSubscriptionRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func inboundEventHandlers() repository.ModelHandlers[*inboundEventRecord] {
	return repository.ModelHandlers[*inboundEventRecord]{
		NewRecord: func() *inboundEventRecord {
			return &inboundEventRecord{}
		},
		GetID: func(record *inboundEventRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *inboundEventRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *inboundEventRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
