package company

import (
	"errors"
	"slices"
	"testing"
)

func sampleCompany() *Company {
	return &Company{
		ID:   "c1",
		Name: "Acme",
		Users: []Member{
			{AccountID: "alice", Roles: []string{"manager"}},
			{AccountID: "bob", Roles: []string{"employee"}},
		},
		Teams: []Team{
			{ID: "t1", Name: "Engineering", Color: DefaultTeamColor, Users: []string{"alice", "bob"}},
			{ID: "t2", Name: "Sales", Color: DefaultTeamColor, Users: []string{"bob"}},
		},
	}
}

func TestNormalizeRoles(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []string
		wantErr bool
	}{
		{name: "nil defaults", in: nil, want: []string{DefaultMemberRole}},
		{name: "trim and dedupe", in: []string{" manager", "manager ", "admin"}, want: []string{"manager", "admin"}},
		{name: "blank entry", in: []string{"manager", "  "}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRoles(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRoles) {
					t.Errorf("expected ErrInvalidRoles, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddMember_Twice(t *testing.T) {
	c := &Company{}
	if err := AddMember(c, Member{AccountID: "alice", Roles: []string{"employee"}}); err != nil {
		t.Fatalf("first AddMember() error: %v", err)
	}
	if err := AddMember(c, Member{AccountID: "alice", Roles: []string{"admin"}}); !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("expected ErrAlreadyMember, got %v", err)
	}
	if len(c.Users) != 1 || c.Users[0].Roles[0] != "employee" {
		t.Errorf("expected exactly one unchanged entry, got %+v", c.Users)
	}
}

func TestRemoveMember_CascadesOutOfTeams(t *testing.T) {
	c := sampleCompany()
	if err := RemoveMember(c, "bob"); err != nil {
		t.Fatalf("RemoveMember() error: %v", err)
	}
	if _, ok := c.Member("bob"); ok {
		t.Error("bob should no longer be a member")
	}
	for _, team := range c.Teams {
		if slices.Contains(team.Users, "bob") {
			t.Errorf("bob still in team %s", team.ID)
		}
	}
	if err := RemoveMember(c, "bob"); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("expected ErrMemberNotFound, got %v", err)
	}
}

func TestRemoveThenAddRestores(t *testing.T) {
	c := sampleCompany()
	before := c.Clone()

	if err := RemoveMember(c, "alice"); err != nil {
		t.Fatalf("RemoveMember() error: %v", err)
	}
	if err := AddMember(c, Member{AccountID: "alice", Roles: []string{"manager"}}); err != nil {
		t.Fatalf("AddMember() error: %v", err)
	}
	m, ok := c.Member("alice")
	if !ok || !slices.Equal(m.Roles, []string{"manager"}) {
		t.Errorf("expected alice restored with manager role, got %+v", m)
	}
	if len(c.Users) != len(before.Users) {
		t.Errorf("expected %d members, got %d", len(before.Users), len(c.Users))
	}
}

func TestSetMemberRoles(t *testing.T) {
	c := sampleCompany()
	if err := SetMemberRoles(c, "bob", []string{"manager"}); err != nil {
		t.Fatalf("SetMemberRoles() error: %v", err)
	}
	if m, _ := c.Member("bob"); !m.HasRole("manager") {
		t.Errorf("expected bob to be manager, got %+v", m)
	}
	if err := SetMemberRoles(c, "carol", []string{"manager"}); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("expected ErrMemberNotFound, got %v", err)
	}
	if len(c.Users) != 2 {
		t.Errorf("SetMemberRoles must not create members, got %d", len(c.Users))
	}
}

func TestTeamLifecycle(t *testing.T) {
	c := sampleCompany()

	team := NewTeam("t3", TeamInput{})
	if team.Name != DefaultTeamName || team.Color != DefaultTeamColor || team.Users == nil {
		t.Errorf("expected defaults, got %+v", team)
	}
	if err := AddTeam(c, team); err != nil {
		t.Fatalf("AddTeam() error: %v", err)
	}

	desc := "platform folks"
	updated, err := UpdateTeam(c, "t3", TeamInput{Description: &desc})
	if err != nil {
		t.Fatalf("UpdateTeam() error: %v", err)
	}
	if updated.Name != DefaultTeamName || updated.Color != DefaultTeamColor || updated.Description != desc {
		t.Errorf("omitted fields must be left unchanged, got %+v", updated)
	}

	if _, err := UpdateTeam(c, "missing", TeamInput{}); !errors.Is(err, ErrTeamNotFound) {
		t.Errorf("expected ErrTeamNotFound, got %v", err)
	}
	if err := RemoveTeam(c, "t3"); err != nil {
		t.Fatalf("RemoveTeam() error: %v", err)
	}
	if err := RemoveTeam(c, "t3"); !errors.Is(err, ErrTeamNotFound) {
		t.Errorf("expected ErrTeamNotFound, got %v", err)
	}
}

func TestAddTeamMember(t *testing.T) {
	tests := []struct {
		name      string
		teamID    string
		accountID string
		wantErr   error
	}{
		{name: "member joins team", teamID: "t2", accountID: "alice"},
		{name: "already in team", teamID: "t1", accountID: "alice", wantErr: ErrAlreadyMember},
		{name: "not a company member", teamID: "t1", accountID: "mallory", wantErr: ErrMemberNotFound},
		{name: "unknown team", teamID: "t9", accountID: "alice", wantErr: ErrTeamNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := sampleCompany()
			err := AddTeamMember(c, tt.teamID, tt.accountID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			team, _ := c.Team(tt.teamID)
			if !slices.Contains(team.Users, tt.accountID) {
				t.Errorf("expected %s in team %s", tt.accountID, tt.teamID)
			}
		})
	}
}

func TestRemoveTeamMember(t *testing.T) {
	c := sampleCompany()
	if err := RemoveTeamMember(c, "t1", "bob"); err != nil {
		t.Fatalf("RemoveTeamMember() error: %v", err)
	}
	if err := RemoveTeamMember(c, "t1", "bob"); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("expected ErrMemberNotFound, got %v", err)
	}
	if _, ok := c.Member("bob"); !ok {
		t.Error("bob must remain a company member")
	}
}

func TestPurgeAccount(t *testing.T) {
	c := sampleCompany()
	if !PurgeAccount(c, "bob") {
		t.Fatal("expected a change")
	}
	if slices.Contains(c.AccountIDs(), "bob") {
		t.Error("bob still referenced")
	}
	if PurgeAccount(c, "bob") {
		t.Error("second purge must be a no-op")
	}
}

func TestReconcile(t *testing.T) {
	c := sampleCompany()
	c.Users = append(c.Users, Member{AccountID: "ghost"}, Member{AccountID: "alice"})
	c.Teams[1].Users = append(c.Teams[1].Users, "stranger", "bob")

	alive := map[string]bool{"alice": true, "bob": true, "stranger": true}
	members, refs := Reconcile(c, func(id string) bool { return alive[id] })

	if members != 2 {
		t.Errorf("expected 2 removed members (ghost and duplicate alice), got %d", members)
	}
	if refs != 2 {
		t.Errorf("expected 2 removed team refs (stranger and duplicate bob), got %d", refs)
	}
	for _, team := range c.Teams {
		for _, id := range team.Users {
			if _, ok := c.Member(id); !ok {
				t.Errorf("team %s references non-member %s", team.ID, id)
			}
		}
	}
}

func TestClone_IsDeep(t *testing.T) {
	c := sampleCompany()
	cp := c.Clone()
	cp.Users[0].Roles[0] = "changed"
	cp.Teams[0].Users[0] = "changed"
	if c.Users[0].Roles[0] == "changed" || c.Teams[0].Users[0] == "changed" {
		t.Error("Clone shares memory with the original")
	}
}
