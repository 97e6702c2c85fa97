package company

import (
	"slices"
	"strings"
)

// The functions in this file mutate a loaded company in place. Stores call
// them while holding whatever lock makes the read-modify-write atomic, so
// they must not perform I/O.

// NormalizeRoles trims and de-duplicates roles, preserving order. An empty
// list selects the default role.
func NormalizeRoles(roles []string) ([]string, error) {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			return nil, ErrInvalidRoles
		}
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		out = append(out, DefaultMemberRole)
	}
	return out, nil
}

// NewTeam builds a team from in, filling omitted fields with defaults.
func NewTeam(id string, in TeamInput) Team {
	t := Team{ID: id, Name: DefaultTeamName, Color: DefaultTeamColor, Users: []string{}}
	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		t.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Color != nil && strings.TrimSpace(*in.Color) != "" {
		t.Color = strings.TrimSpace(*in.Color)
	}
	return t
}

func (c *Company) memberIndex(accountID string) int {
	return slices.IndexFunc(c.Users, func(m Member) bool { return m.AccountID == accountID })
}

func (c *Company) teamIndex(teamID string) int {
	return slices.IndexFunc(c.Teams, func(t Team) bool { return t.ID == teamID })
}

// Member returns the membership of accountID.
func (c *Company) Member(accountID string) (Member, bool) {
	i := c.memberIndex(accountID)
	if i < 0 {
		return Member{}, false
	}
	return c.Users[i], true
}

// Team returns the team with teamID.
func (c *Company) Team(teamID string) (Team, bool) {
	i := c.teamIndex(teamID)
	if i < 0 {
		return Team{}, false
	}
	return c.Teams[i], true
}

// AddMember appends m. It fails with ErrAlreadyMember if the account is
// already present.
func AddMember(c *Company, m Member) error {
	if c.memberIndex(m.AccountID) >= 0 {
		return ErrAlreadyMember
	}
	c.Users = append(c.Users, Member{AccountID: m.AccountID, Roles: slices.Clone(m.Roles)})
	return nil
}

// RemoveMember removes accountID from the company and from every team.
func RemoveMember(c *Company, accountID string) error {
	i := c.memberIndex(accountID)
	if i < 0 {
		return ErrMemberNotFound
	}
	c.Users = slices.Delete(c.Users, i, i+1)
	for ti := range c.Teams {
		c.Teams[ti].Users = removeString(c.Teams[ti].Users, accountID)
	}
	return nil
}

// SetMemberRoles replaces the roles of an existing member.
func SetMemberRoles(c *Company, accountID string, roles []string) error {
	i := c.memberIndex(accountID)
	if i < 0 {
		return ErrMemberNotFound
	}
	c.Users[i].Roles = slices.Clone(roles)
	return nil
}

// AddTeam appends t.
func AddTeam(c *Company, t Team) error {
	if t.Users == nil {
		t.Users = []string{}
	}
	c.Teams = append(c.Teams, t)
	return nil
}

// UpdateTeam applies the provided fields of in to the team and returns a copy
// of the result.
func UpdateTeam(c *Company, teamID string, in TeamInput) (*Team, error) {
	i := c.teamIndex(teamID)
	if i < 0 {
		return nil, ErrTeamNotFound
	}
	t := &c.Teams[i]
	if in.Name != nil {
		t.Name = strings.TrimSpace(*in.Name)
		if t.Name == "" {
			t.Name = DefaultTeamName
		}
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Color != nil {
		t.Color = strings.TrimSpace(*in.Color)
		if t.Color == "" {
			t.Color = DefaultTeamColor
		}
	}
	out := *t
	out.Users = slices.Clone(t.Users)
	return &out, nil
}

// RemoveTeam deletes the team with teamID.
func RemoveTeam(c *Company, teamID string) error {
	i := c.teamIndex(teamID)
	if i < 0 {
		return ErrTeamNotFound
	}
	c.Teams = slices.Delete(c.Teams, i, i+1)
	return nil
}

// AddTeamMember puts a company member into a team.
func AddTeamMember(c *Company, teamID, accountID string) error {
	i := c.teamIndex(teamID)
	if i < 0 {
		return ErrTeamNotFound
	}
	if c.memberIndex(accountID) < 0 {
		return ErrMemberNotFound
	}
	if slices.Contains(c.Teams[i].Users, accountID) {
		return ErrAlreadyMember
	}
	c.Teams[i].Users = append(c.Teams[i].Users, accountID)
	return nil
}

// RemoveTeamMember takes accountID out of a team.
func RemoveTeamMember(c *Company, teamID, accountID string) error {
	i := c.teamIndex(teamID)
	if i < 0 {
		return ErrTeamNotFound
	}
	if !slices.Contains(c.Teams[i].Users, accountID) {
		return ErrMemberNotFound
	}
	c.Teams[i].Users = removeString(c.Teams[i].Users, accountID)
	return nil
}

// PurgeAccount removes every reference to accountID and reports whether
// anything changed.
func PurgeAccount(c *Company, accountID string) bool {
	changed := false
	if i := c.memberIndex(accountID); i >= 0 {
		c.Users = slices.Delete(c.Users, i, i+1)
		changed = true
	}
	for ti := range c.Teams {
		before := len(c.Teams[ti].Users)
		c.Teams[ti].Users = removeString(c.Teams[ti].Users, accountID)
		if len(c.Teams[ti].Users) != before {
			changed = true
		}
	}
	return changed
}

// Reconcile drops members whose account no longer exists, duplicate member
// entries, and team references to accounts that are not company members. It
// returns the number of members and team references removed.
func Reconcile(c *Company, exists func(accountID string) bool) (removedMembers, removedTeamRefs int) {
	members := make([]Member, 0, len(c.Users))
	seen := make(map[string]bool, len(c.Users))
	for _, m := range c.Users {
		if seen[m.AccountID] || !exists(m.AccountID) {
			removedMembers++
			continue
		}
		seen[m.AccountID] = true
		members = append(members, m)
	}
	c.Users = members

	for ti := range c.Teams {
		users := make([]string, 0, len(c.Teams[ti].Users))
		inTeam := make(map[string]bool, len(c.Teams[ti].Users))
		for _, id := range c.Teams[ti].Users {
			if !seen[id] || inTeam[id] {
				removedTeamRefs++
				continue
			}
			inTeam[id] = true
			users = append(users, id)
		}
		c.Teams[ti].Users = users
	}
	return removedMembers, removedTeamRefs
}

// AccountIDs returns every account id referenced by the company.
func (c *Company) AccountIDs() []string {
	var ids []string
	for _, m := range c.Users {
		ids = append(ids, m.AccountID)
	}
	for _, t := range c.Teams {
		for _, id := range t.Users {
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Clone returns a deep copy of c.
func (c *Company) Clone() *Company {
	out := *c
	out.Users = make([]Member, len(c.Users))
	for i, m := range c.Users {
		out.Users[i] = Member{AccountID: m.AccountID, Roles: slices.Clone(m.Roles)}
	}
	out.Teams = make([]Team, len(c.Teams))
	for i, t := range c.Teams {
		t.Users = slices.Clone(t.Users)
		if t.Users == nil {
			t.Users = []string{}
		}
		out.Teams[i] = t
	}
	return &out
}

func removeString(list []string, s string) []string {
	return slices.DeleteFunc(list, func(v string) bool { return v == s })
}
