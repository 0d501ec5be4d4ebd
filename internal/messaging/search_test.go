package messaging_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/messaging"
	"github.com/lalith-99/brokerchat/internal/models"
)

func TestSearchMessages(t *testing.T) {
	f := newFixture(t)
	alice := uuid.New()
	listings := f.channel(t, alice, "Listings", models.ChannelPublic)
	closings := f.channel(t, alice, "Closings", models.ChannelPublic)
	ctx := context.Background()

	m1 := f.send(t, alice, models.ChannelScope(listings.ID), "3BR Colonial on Maple")
	m2 := f.send(t, alice, models.ChannelScope(closings.ID), "maple st closing moved to friday")
	gone := f.send(t, alice, models.ChannelScope(listings.ID), "maple deal fell through")
	f.send(t, alice, models.ChannelScope(listings.ID), "condo on Birch")
	if _, err := f.svc.DeleteMessage(ctx, f.org, gone.ID, alice); err != nil {
		t.Fatal(err)
	}

	hits, err := f.svc.SearchMessages(ctx, messaging.SearchInput{OrganizationID: f.org, Query: "MAPLE"})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(ids(hits), []int64{m2.ID, m1.ID}) {
		t.Errorf("hits = %v, want %v newest first", ids(hits), []int64{m2.ID, m1.ID})
	}

	scope := models.ChannelScope(listings.ID)
	hits, err = f.svc.SearchMessages(ctx, messaging.SearchInput{OrganizationID: f.org, Query: "maple", Scope: &scope})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(ids(hits), []int64{m1.ID}) {
		t.Errorf("scoped hits = %v, want %v", ids(hits), []int64{m1.ID})
	}

	hits, err = f.svc.SearchMessages(ctx, messaging.SearchInput{OrganizationID: uuid.New(), Query: "maple"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("other organization found %d messages", len(hits))
	}
}

func TestSearchMessagesLimit(t *testing.T) {
	f := newFixture(t)
	alice := uuid.New()
	ch := f.channel(t, alice, "General", models.ChannelPublic)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		f.send(t, alice, models.ChannelScope(ch.ID), fmt.Sprintf("showing #%d", i))
	}

	hits, err := f.svc.SearchMessages(ctx, messaging.SearchInput{OrganizationID: f.org, Query: "showing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != messaging.DefaultSearchSize {
		t.Errorf("default limit returned %d, want %d", len(hits), messaging.DefaultSearchSize)
	}

	hits, _ = f.svc.SearchMessages(ctx, messaging.SearchInput{OrganizationID: f.org, Query: "showing", Limit: 3})
	if len(hits) != 3 || hits[0].Content != "showing #24" {
		t.Errorf("limit 3 = %v", ids(hits))
	}
}

func TestSearchMessagesValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.SearchMessages(ctx, messaging.SearchInput{OrganizationID: f.org, Query: "  "}); !errors.Is(err, messaging.ErrInvalidInput) {
		t.Errorf("blank query: err = %v, want ErrInvalidInput", err)
	}
	zero := models.Scope{}
	if _, err := f.svc.SearchMessages(ctx, messaging.SearchInput{OrganizationID: f.org, Query: "x", Scope: &zero}); !errors.Is(err, messaging.ErrInvalidInput) {
		t.Errorf("zero scope: err = %v, want ErrInvalidInput", err)
	}
}
