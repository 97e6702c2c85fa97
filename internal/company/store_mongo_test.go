package company

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/talentcontrolhr/talentcontrol/internal/storage"
)

const companiesNS = "talentcontrol.companies"

// matched is the reply to an update command that matched n documents.
func matched(n int) bson.D {
	return mtest.CreateSuccessResponse(
		bson.E{Key: "n", Value: n},
		bson.E{Key: "nModified", Value: n},
	)
}

// found is the reply to a find command returning docs.
func found(t *testing.T, docs ...companyDoc) bson.D {
	t.Helper()
	batch := make([]bson.D, len(docs))
	for i, doc := range docs {
		raw, err := bson.Marshal(doc)
		if err != nil {
			t.Fatalf("marshalling company doc: %v", err)
		}
		if err := bson.Unmarshal(raw, &batch[i]); err != nil {
			t.Fatalf("unmarshalling company doc: %v", err)
		}
	}
	return mtest.CreateCursorResponse(0, companiesNS, mtest.FirstBatch, batch...)
}

func badValue() bson.D {
	return mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad value"})
}

func countStarted(mt *mtest.T, command string) int {
	var n int
	for _, evt := range mt.GetAllStartedEvents() {
		if evt.CommandName == command {
			n++
		}
	}
	return n
}

func TestMongoStore_ConditionalWrites(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	oid := primitive.NewObjectID()
	withAlice := companyDoc{
		ID:    oid,
		Name:  "Acme",
		Users: []memberDoc{{UserID: "alice", Roles: []string{"admin"}}},
		Teams: []teamDoc{{TeamID: "t1", Name: "Ops", Users: []string{"alice"}}},
		Rev:   4,
	}
	withoutAlice := companyDoc{
		ID:    oid,
		Name:  "Acme",
		Teams: []teamDoc{{TeamID: "t1", Name: "Ops", Users: []string{}}},
		Rev:   5,
	}

	tests := []struct {
		name      string
		responses func(t *testing.T) []bson.D
		op        func(s *MongoStore) error
		wantErr   error
		wantLoads int
	}{
		{
			name:      "add member applied",
			responses: func(t *testing.T) []bson.D { return []bson.D{matched(1)} },
			op: func(s *MongoStore) error {
				return s.AddMember(ctx, oid.Hex(), Member{AccountID: "alice"})
			},
		},
		{
			name:      "add member already present",
			responses: func(t *testing.T) []bson.D { return []bson.D{matched(0), found(t, withAlice)} },
			op: func(s *MongoStore) error {
				return s.AddMember(ctx, oid.Hex(), Member{AccountID: "alice"})
			},
			wantErr:   ErrAlreadyMember,
			wantLoads: 1,
		},
		{
			name:      "add member guard lost a race",
			responses: func(t *testing.T) []bson.D { return []bson.D{matched(0), found(t, withoutAlice)} },
			op: func(s *MongoStore) error {
				return s.AddMember(ctx, oid.Hex(), Member{AccountID: "alice"})
			},
			wantErr:   ErrConflict,
			wantLoads: 1,
		},
		{
			name:      "add member to deleted company",
			responses: func(t *testing.T) []bson.D { return []bson.D{matched(0), found(t)} },
			op: func(s *MongoStore) error {
				return s.AddMember(ctx, oid.Hex(), Member{AccountID: "alice"})
			},
			wantErr:   ErrNotFound,
			wantLoads: 1,
		},
		{
			name:      "remove missing member",
			responses: func(t *testing.T) []bson.D { return []bson.D{matched(0), found(t, withoutAlice)} },
			op: func(s *MongoStore) error {
				return s.RemoveMember(ctx, oid.Hex(), "alice")
			},
			wantErr:   ErrMemberNotFound,
			wantLoads: 1,
		},
		{
			name:      "add team member who is not a company member",
			responses: func(t *testing.T) []bson.D { return []bson.D{matched(0), found(t, withoutAlice)} },
			op: func(s *MongoStore) error {
				return s.AddTeamMember(ctx, oid.Hex(), "t1", "alice")
			},
			wantErr:   ErrMemberNotFound,
			wantLoads: 1,
		},
		{
			name:      "update rejected by server",
			responses: func(t *testing.T) []bson.D { return []bson.D{badValue()} },
			op: func(s *MongoStore) error {
				return s.SetMemberRoles(ctx, oid.Hex(), "alice", []string{"manager"})
			},
			wantErr: storage.ErrUnavailable,
		},
		{
			name:      "malformed company id",
			responses: func(t *testing.T) []bson.D { return nil },
			op: func(s *MongoStore) error {
				return s.AddMember(ctx, "not-an-object-id", Member{AccountID: "alice"})
			},
			wantErr: ErrNotFound,
		},
	}
	for _, tt := range tests {
		mt.Run(tt.name, func(mt *mtest.T) {
			mt.AddMockResponses(tt.responses(mt.T)...)
			store := NewMongoStore(mt.DB)

			err := tt.op(store)
			if tt.wantErr == nil && err != nil {
				mt.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				mt.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if got := countStarted(mt, "find"); got != tt.wantLoads {
				mt.Errorf("expected %d reloads, got %d", tt.wantLoads, got)
			}
		})
	}
}

func TestMongoStore_Apply(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	oid := primitive.NewObjectID()
	doc := companyDoc{
		ID:    oid,
		Name:  "Acme",
		Users: []memberDoc{{UserID: "alice", Roles: []string{"admin"}}},
		Rev:   7,
	}
	addBob := func(c *Company) (bool, error) {
		return true, AddMember(c, Member{AccountID: "bob"})
	}

	tests := []struct {
		name        string
		responses   func(t *testing.T) []bson.D
		fn          func(*Company) (bool, error)
		wantErr     error
		wantCalls   int
		wantUpdates int
	}{
		{
			name:        "first attempt wins",
			responses:   func(t *testing.T) []bson.D { return []bson.D{found(t, doc), matched(1)} },
			fn:          addBob,
			wantCalls:   1,
			wantUpdates: 1,
		},
		{
			name: "retries after a concurrent writer",
			responses: func(t *testing.T) []bson.D {
				return []bson.D{found(t, doc), matched(0), found(t, doc), matched(1)}
			},
			fn:          addBob,
			wantCalls:   2,
			wantUpdates: 2,
		},
		{
			name: "gives up after every attempt loses",
			responses: func(t *testing.T) []bson.D {
				var rs []bson.D
				for range applyAttempts {
					rs = append(rs, found(t, doc), matched(0))
				}
				return rs
			},
			fn:          addBob,
			wantErr:     ErrConflict,
			wantCalls:   applyAttempts,
			wantUpdates: applyAttempts,
		},
		{
			name:      "unchanged graph skips the write",
			responses: func(t *testing.T) []bson.D { return []bson.D{found(t, doc)} },
			fn:        func(*Company) (bool, error) { return false, nil },
			wantCalls: 1,
		},
		{
			name:      "operation error aborts",
			responses: func(t *testing.T) []bson.D { return []bson.D{found(t, doc)} },
			fn: func(c *Company) (bool, error) {
				return true, AddMember(c, Member{AccountID: "alice"})
			},
			wantErr:   ErrAlreadyMember,
			wantCalls: 1,
		},
		{
			name:      "missing company",
			responses: func(t *testing.T) []bson.D { return []bson.D{found(t)} },
			fn:        addBob,
			wantErr:   ErrNotFound,
		},
	}
	for _, tt := range tests {
		mt.Run(tt.name, func(mt *mtest.T) {
			mt.AddMockResponses(tt.responses(mt.T)...)
			store := NewMongoStore(mt.DB)

			var calls int
			err := store.Apply(ctx, oid.Hex(), func(c *Company) (bool, error) {
				calls++
				return tt.fn(c)
			})
			if tt.wantErr == nil && err != nil {
				mt.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				mt.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if calls != tt.wantCalls {
				mt.Errorf("expected fn to run %d times, got %d", tt.wantCalls, calls)
			}
			if got := countStarted(mt, "update"); got != tt.wantUpdates {
				mt.Errorf("expected %d updates, got %d", tt.wantUpdates, got)
			}
		})
	}
}

func TestMongoStore_UpdateTeam(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	oid := primitive.NewObjectID()
	blank := " "
	renamed := companyDoc{
		ID:    oid,
		Name:  "Acme",
		Teams: []teamDoc{{TeamID: "t1", Name: DefaultTeamName, Color: "#fff", Users: []string{}}},
	}

	mt.Run("returns the stored team", func(mt *mtest.T) {
		raw, err := bson.Marshal(renamed)
		if err != nil {
			mt.Fatalf("marshalling company doc: %v", err)
		}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.Raw(raw)}))

		team, err := NewMongoStore(mt.DB).UpdateTeam(ctx, oid.Hex(), "t1", TeamInput{Name: &blank})
		if err != nil {
			mt.Fatalf("UpdateTeam() error: %v", err)
		}
		if team.Name != DefaultTeamName || team.Color != "#fff" {
			mt.Errorf("unexpected team: %+v", team)
		}
	})

	mt.Run("unknown team in existing company", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			found(mt.T, renamed),
		)
		_, err := NewMongoStore(mt.DB).UpdateTeam(ctx, oid.Hex(), "t2", TeamInput{Name: &blank})
		if !errors.Is(err, ErrTeamNotFound) {
			mt.Fatalf("expected ErrTeamNotFound, got %v", err)
		}
	})
}
