package messaging

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/models"
	"github.com/lalith-99/brokerchat/internal/repository"
)

type SearchInput struct {
	OrganizationID uuid.UUID
	Query          string
	Scope          *models.Scope
	Limit          int
}

// SearchMessages is a plain case-insensitive substring match, newest first.
// Deleted messages never match.
func (s *Service) SearchMessages(ctx context.Context, in SearchInput) ([]models.Message, error) {
	q := strings.TrimSpace(in.Query)
	if q == "" {
		return nil, invalid("search query is required")
	}
	if in.Scope != nil && !in.Scope.Valid() {
		return nil, invalid("scope needs a channel or conversation id")
	}
	msgs, err := s.store.Messages.Search(ctx, repository.SearchQuery{
		OrganizationID: in.OrganizationID,
		Text:           q,
		Scope:          in.Scope,
		Limit:          clampLimit(in.Limit, DefaultSearchSize),
	})
	if err != nil {
		return nil, storeErr("search messages", err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}
