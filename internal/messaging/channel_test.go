package messaging_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/messaging"
	"github.com/lalith-99/brokerchat/internal/models"
)

func TestCreateChannel(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	ctx := context.Background()

	ch := f.channel(t, owner, "  Open Houses & Tours ", "")
	if ch.Name != "Open Houses & Tours" || ch.Slug != "open-houses-tours" {
		t.Errorf("name/slug = %q / %q", ch.Name, ch.Slug)
	}
	if ch.Type != models.ChannelPublic {
		t.Errorf("type = %s, want PUBLIC default", ch.Type)
	}

	members, err := f.svc.ListChannelMembers(ctx, f.org, ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].UserID != owner || members[0].Role != models.RoleOwner {
		t.Errorf("members = %+v, want creator as OWNER", members)
	}

	_, err = f.svc.CreateChannel(ctx, messaging.CreateChannelInput{OrganizationID: f.org, Name: "open houses, tours!", CreatedByID: owner})
	if !errors.Is(err, messaging.ErrConflict) {
		t.Errorf("duplicate slug: err = %v, want ErrConflict", err)
	}

	// Slugs are unique per organization only.
	if _, err := f.svc.CreateChannel(ctx, messaging.CreateChannelInput{OrganizationID: uuid.New(), Name: "Open Houses & Tours", CreatedByID: owner}); err != nil {
		t.Errorf("same slug in another org: %v", err)
	}
}

func TestCreateChannelValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   messaging.CreateChannelInput
	}{
		{"empty name", messaging.CreateChannelInput{Name: "   "}},
		{"punctuation only", messaging.CreateChannelInput{Name: "!!!"}},
		{"unknown type", messaging.CreateChannelInput{Name: "ok", Type: "SECRET"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.OrganizationID = f.org
			tt.in.CreatedByID = uuid.New()
			if _, err := f.svc.CreateChannel(ctx, tt.in); !errors.Is(err, messaging.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestUpdateChannelKeepsSlug(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	ch := f.channel(t, owner, "Listings", models.ChannelPublic)
	ctx := context.Background()

	name, desc := "Active Listings", "what is on the market"
	updated, err := f.svc.UpdateChannel(ctx, f.org, ch.ID, messaging.UpdateChannelInput{Name: &name, Description: &desc})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != name || updated.Description != desc || updated.Slug != "listings" {
		t.Errorf("updated = %+v", updated)
	}

	blank := " "
	if _, err := f.svc.UpdateChannel(ctx, f.org, ch.ID, messaging.UpdateChannelInput{Name: &blank}); !errors.Is(err, messaging.ErrInvalidInput) {
		t.Errorf("blank rename: err = %v, want ErrInvalidInput", err)
	}
	if _, err := f.svc.UpdateChannel(ctx, uuid.New(), ch.ID, messaging.UpdateChannelInput{Name: &name}); !errors.Is(err, messaging.ErrNotFound) {
		t.Errorf("other org: err = %v, want ErrNotFound", err)
	}
}

func TestArchiveChannelHidesFromListing(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	ch := f.channel(t, owner, "2025 Deals", models.ChannelPublic)
	ctx := context.Background()
	msg := f.send(t, owner, models.ChannelScope(ch.ID), "final numbers")

	for i := 0; i < 2; i++ {
		archived, err := f.svc.ArchiveChannel(ctx, f.org, ch.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !archived.IsArchived {
			t.Fatal("channel not archived")
		}
	}

	channels, err := f.svc.GetUserChannels(ctx, f.org, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(channels) != 0 {
		t.Errorf("archived channel still listed: %+v", channels)
	}
	if _, err := f.svc.GetMessage(ctx, f.org, msg.ID); err != nil {
		t.Errorf("history unreadable after archive: %v", err)
	}
}

func TestChannelMembership(t *testing.T) {
	f := newFixture(t)
	owner, agent := uuid.New(), uuid.New()
	ch := f.channel(t, owner, "Leadership", models.ChannelPrivate)
	ctx := context.Background()

	m, err := f.svc.AddChannelMember(ctx, f.org, ch.ID, agent, "")
	if err != nil {
		t.Fatal(err)
	}
	if m.Role != models.RoleMember {
		t.Errorf("role = %s, want MEMBER default", m.Role)
	}

	// Adding again updates the role and keeps one row.
	m, err = f.svc.AddChannelMember(ctx, f.org, ch.ID, agent, models.RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if m.Role != models.RoleAdmin {
		t.Errorf("role = %s, want ADMIN", m.Role)
	}
	members, err := f.svc.ListChannelMembers(ctx, f.org, ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %+v, want owner and agent", members)
	}

	if _, err := f.svc.AddChannelMember(ctx, f.org, ch.ID, agent, "GUEST"); !errors.Is(err, messaging.ErrInvalidInput) {
		t.Errorf("bad role: err = %v, want ErrInvalidInput", err)
	}
	if _, err := f.svc.AddChannelMember(ctx, f.org, uuid.New(), agent, ""); !errors.Is(err, messaging.ErrNotFound) {
		t.Errorf("missing channel: err = %v, want ErrNotFound", err)
	}

	if err := f.svc.RemoveChannelMember(ctx, f.org, ch.ID, agent); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.RemoveChannelMember(ctx, f.org, ch.ID, agent); err != nil {
		t.Errorf("second remove: %v", err)
	}
	if ok, _ := f.svc.CanAccess(ctx, f.org, agent, models.ChannelScope(ch.ID)); ok {
		t.Error("removed member still has access")
	}
}

func TestMuteChannel(t *testing.T) {
	f := newFixture(t)
	owner, stranger := uuid.New(), uuid.New()
	ch := f.channel(t, owner, "Noise", models.ChannelPublic)
	ctx := context.Background()

	until := f.clock.Now().Add(8 * time.Hour)
	if err := f.svc.MuteChannel(ctx, f.org, ch.ID, owner, &until); err != nil {
		t.Fatal(err)
	}
	channels, err := f.svc.GetUserChannels(ctx, f.org, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(channels) != 1 || channels[0].MutedUntil == nil || !channels[0].MutedUntil.Equal(until) {
		t.Fatalf("channels = %+v", channels)
	}

	if err := f.svc.MuteChannel(ctx, f.org, ch.ID, owner, nil); err != nil {
		t.Fatal(err)
	}
	channels, _ = f.svc.GetUserChannels(ctx, f.org, owner)
	if channels[0].MutedUntil != nil {
		t.Errorf("still muted until %v", channels[0].MutedUntil)
	}

	if err := f.svc.MuteChannel(ctx, f.org, ch.ID, stranger, &until); !errors.Is(err, messaging.ErrNotFound) {
		t.Errorf("non-member mute: err = %v, want ErrNotFound", err)
	}
}

func TestGetUserChannels(t *testing.T) {
	f := newFixture(t)
	owner, agent := uuid.New(), uuid.New()
	ctx := context.Background()

	general, err := f.svc.CreateChannel(ctx, messaging.CreateChannelInput{
		OrganizationID: f.org, Name: "General", IsDefault: true, CreatedByID: owner,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.channel(t, owner, "Announcements", models.ChannelAnnouncement)
	f.channel(t, owner, "Brokers", models.ChannelPrivate)
	f.channel(t, owner, "Zoning", models.ChannelPublic)
	f.send(t, owner, models.ChannelScope(general.ID), "welcome")

	channels, err := f.svc.GetUserChannels(ctx, f.org, agent)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, c := range channels {
		names = append(names, c.Name)
	}
	want := []string{"General", "Zoning"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Fatalf("channels = %v, want %v", names, want)
	}
	if channels[0].MyRole != nil {
		t.Errorf("non-member role = %v, want nil", *channels[0].MyRole)
	}
	if channels[0].MessageCount != 1 {
		t.Errorf("message count = %d, want 1", channels[0].MessageCount)
	}

	mine, _ := f.svc.GetUserChannels(ctx, f.org, owner)
	if len(mine) != 4 || mine[0].Name != "General" || mine[0].MyRole == nil || *mine[0].MyRole != models.RoleOwner {
		t.Errorf("owner channels = %+v", mine)
	}
}
