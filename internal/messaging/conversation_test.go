package messaging_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/messaging"
	"github.com/lalith-99/brokerchat/internal/models"
)

func TestGetOrCreateDMDedup(t *testing.T) {
	f := newFixture(t)
	a, b := uuid.New(), uuid.New()
	ctx := context.Background()

	first, err := f.svc.GetOrCreateDM(ctx, f.org, a, b)
	if err != nil {
		t.Fatal(err)
	}
	again, err := f.svc.GetOrCreateDM(ctx, f.org, a, b)
	if err != nil {
		t.Fatal(err)
	}
	swapped, err := f.svc.GetOrCreateDM(ctx, f.org, b, a)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID || swapped.ID != first.ID {
		t.Fatalf("ids = %s %s %s, want one conversation", first.ID, again.ID, swapped.ID)
	}
	if first.IsGroup {
		t.Error("DM reported as group")
	}

	inbox, err := f.svc.GetUserConversations(ctx, f.org, a)
	if err != nil {
		t.Fatal(err)
	}
	if len(inbox) != 1 {
		t.Fatalf("inbox has %d conversations, want 1", len(inbox))
	}
}

func TestGetOrCreateDMPerOrganization(t *testing.T) {
	f := newFixture(t)
	a, b := uuid.New(), uuid.New()
	ctx := context.Background()

	mine, err := f.svc.GetOrCreateDM(ctx, f.org, a, b)
	if err != nil {
		t.Fatal(err)
	}
	theirs, err := f.svc.GetOrCreateDM(ctx, uuid.New(), a, b)
	if err != nil {
		t.Fatal(err)
	}
	if mine.ID == theirs.ID {
		t.Error("same DM shared across organizations")
	}
}

func TestGetOrCreateDMWithSelf(t *testing.T) {
	f := newFixture(t)
	a := uuid.New()
	if _, err := f.svc.GetOrCreateDM(context.Background(), f.org, a, a); !errors.Is(err, messaging.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestLeaveDMStartsFresh(t *testing.T) {
	f := newFixture(t)
	a, b := uuid.New(), uuid.New()
	ctx := context.Background()

	dm, err := f.svc.GetOrCreateDM(ctx, f.org, a, b)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.LeaveConversation(ctx, f.org, dm.ID, a); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.LeaveConversation(ctx, f.org, dm.ID, a); !errors.Is(err, messaging.ErrNotFound) {
		t.Errorf("second leave: err = %v, want ErrNotFound", err)
	}

	ok, err := f.svc.CanAccess(ctx, f.org, a, models.ConversationScope(dm.ID))
	if err != nil || ok {
		t.Errorf("CanAccess after leave = %v, %v", ok, err)
	}

	fresh, err := f.svc.GetOrCreateDM(ctx, f.org, b, a)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.ID == dm.ID {
		t.Error("GetOrCreateDM returned the conversation that was left")
	}
}

func TestCreateGroupConversation(t *testing.T) {
	f := newFixture(t)
	agent, buyer, lender := uuid.New(), uuid.New(), uuid.New()
	deal := uuid.New()
	dealType := models.EntityDeal
	ctx := context.Background()

	conv, err := f.svc.CreateGroupConversation(ctx, messaging.CreateGroupInput{
		OrganizationID: f.org,
		CreatedByID:    agent,
		Name:           " 12 Oak Lane closing ",
		ParticipantIDs: []uuid.UUID{buyer, lender, buyer, agent},
		EntityType:     &dealType,
		EntityID:       &deal,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !conv.IsGroup || conv.Name != "12 Oak Lane closing" {
		t.Errorf("conv = %+v", conv)
	}
	if conv.EntityType == nil || *conv.EntityType != models.EntityDeal || conv.EntityID == nil || *conv.EntityID != deal {
		t.Errorf("entity link = %v %v", conv.EntityType, conv.EntityID)
	}

	inbox, err := f.svc.GetUserConversations(ctx, f.org, lender)
	if err != nil {
		t.Fatal(err)
	}
	if len(inbox) != 1 {
		t.Fatalf("lender inbox = %+v", inbox)
	}
	got := slices.Clone(inbox[0].ParticipantIDs)
	want := []uuid.UUID{agent, buyer, lender}
	byString := func(x, y uuid.UUID) int { return strings.Compare(x.String(), y.String()) }
	slices.SortFunc(got, byString)
	slices.SortFunc(want, byString)
	if !slices.Equal(got, want) {
		t.Errorf("participants = %v, want %v", got, want)
	}
}

func TestCreateGroupConversationEntityValidation(t *testing.T) {
	f := newFixture(t)
	creator := uuid.New()
	entityID := uuid.New()
	bogus := models.EntityType("LISTING")
	client := models.EntityClient
	ctx := context.Background()

	tests := []struct {
		name       string
		entityType *models.EntityType
		entityID   *uuid.UUID
	}{
		{"type without id", &client, nil},
		{"id without type", nil, &entityID},
		{"unknown type", &bogus, &entityID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateGroupConversation(ctx, messaging.CreateGroupInput{
				OrganizationID: f.org,
				CreatedByID:    creator,
				EntityType:     tt.entityType,
				EntityID:       tt.entityID,
			})
			if !errors.Is(err, messaging.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestAddConversationParticipant(t *testing.T) {
	f := newFixture(t)
	agent, buyer, inspector := uuid.New(), uuid.New(), uuid.New()
	ctx := context.Background()

	group, err := f.svc.CreateGroupConversation(ctx, messaging.CreateGroupInput{
		OrganizationID: f.org, CreatedByID: agent, Name: "Inspection", ParticipantIDs: []uuid.UUID{buyer},
	})
	if err != nil {
		t.Fatal(err)
	}
	scope := models.ConversationScope(group.ID)

	if ok, _ := f.svc.CanAccess(ctx, f.org, inspector, scope); ok {
		t.Fatal("inspector has access before being added")
	}
	if err := f.svc.AddConversationParticipant(ctx, f.org, group.ID, inspector); err != nil {
		t.Fatal(err)
	}
	if ok, _ := f.svc.CanAccess(ctx, f.org, inspector, scope); !ok {
		t.Error("inspector has no access after being added")
	}

	// Leave then rejoin.
	if err := f.svc.LeaveConversation(ctx, f.org, group.ID, inspector); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.AddConversationParticipant(ctx, f.org, group.ID, inspector); err != nil {
		t.Fatal(err)
	}
	if ok, _ := f.svc.CanAccess(ctx, f.org, inspector, scope); !ok {
		t.Error("inspector has no access after rejoining")
	}

	dm, err := f.svc.GetOrCreateDM(ctx, f.org, agent, buyer)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.AddConversationParticipant(ctx, f.org, dm.ID, inspector); !errors.Is(err, messaging.ErrInvalidInput) {
		t.Errorf("add to DM: err = %v, want ErrInvalidInput", err)
	}
	if err := f.svc.AddConversationParticipant(ctx, uuid.New(), group.ID, inspector); !errors.Is(err, messaging.ErrNotFound) {
		t.Errorf("other org: err = %v, want ErrNotFound", err)
	}
}

func TestCanAccess(t *testing.T) {
	f := newFixture(t)
	owner, member, outsider := uuid.New(), uuid.New(), uuid.New()
	ctx := context.Background()

	public := f.channel(t, owner, "Everyone", models.ChannelPublic)
	private := f.channel(t, owner, "Brokers Only", models.ChannelPrivate)
	if _, err := f.svc.AddChannelMember(ctx, f.org, private.ID, member, ""); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		user  uuid.UUID
		scope models.Scope
		want  bool
	}{
		{"public channel outsider", outsider, models.ChannelScope(public.ID), true},
		{"private channel owner", owner, models.ChannelScope(private.ID), true},
		{"private channel member", member, models.ChannelScope(private.ID), true},
		{"private channel outsider", outsider, models.ChannelScope(private.ID), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.CanAccess(ctx, f.org, tt.user, tt.scope)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("CanAccess = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := f.svc.CanAccess(ctx, uuid.New(), owner, models.ChannelScope(public.ID)); !errors.Is(err, messaging.ErrNotFound) {
		t.Errorf("other org: err = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.CanAccess(ctx, f.org, owner, models.Scope{}); !errors.Is(err, messaging.ErrInvalidInput) {
		t.Errorf("zero scope: err = %v, want ErrInvalidInput", err)
	}
}
