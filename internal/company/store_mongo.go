package company

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/talentcontrolhr/talentcontrol/internal/storage"
	"github.com/talentcontrolhr/talentcontrol/internal/storage/mongodb"
)

// applyAttempts bounds the compare-and-swap retries of Apply.
const applyAttempts = 3

type memberDoc struct {
	UserID string   `bson:"userId"`
	Roles  []string `bson:"roles"`
}

type teamDoc struct {
	TeamID      string   `bson:"teamId"`
	Name        string   `bson:"name"`
	Description string   `bson:"description"`
	Color       string   `bson:"color"`
	Users       []string `bson:"users"`
}

type companyDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Description string             `bson:"description"`
	Industry    string             `bson:"industry"`
	Image       string             `bson:"image"`
	Teams       []teamDoc          `bson:"teams"`
	Users       []memberDoc        `bson:"users"`
	Rev         int64              `bson:"rev"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func toTeamDoc(t Team) teamDoc {
	users := t.Users
	if users == nil {
		users = []string{}
	}
	return teamDoc{TeamID: t.ID, Name: t.Name, Description: t.Description, Color: t.Color, Users: users}
}

func toMemberDoc(m Member) memberDoc {
	return memberDoc{UserID: m.AccountID, Roles: m.Roles}
}

func graphDocs(c *Company) ([]teamDoc, []memberDoc) {
	teams := make([]teamDoc, len(c.Teams))
	for i, t := range c.Teams {
		teams[i] = toTeamDoc(t)
	}
	users := make([]memberDoc, len(c.Users))
	for i, m := range c.Users {
		users[i] = toMemberDoc(m)
	}
	return teams, users
}

func (d *companyDoc) company() *Company {
	c := &Company{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Description: d.Description,
		Industry:    d.Industry,
		Image:       d.Image,
		Teams:       make([]Team, len(d.Teams)),
		Users:       make([]Member, len(d.Users)),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for i, t := range d.Teams {
		users := t.Users
		if users == nil {
			users = []string{}
		}
		c.Teams[i] = Team{ID: t.TeamID, Name: t.Name, Description: t.Description, Color: t.Color, Users: users}
	}
	for i, m := range d.Users {
		c.Users[i] = Member{AccountID: m.UserID, Roles: m.Roles}
	}
	return c
}

// MongoStore is a Repository backed by the companies collection. Graph
// operations are single conditional updates; a write that matches nothing is
// explained by replaying the pure operation on the current document.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoStore creates a store on the companies collection of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(mongodb.CompaniesCollection), now: time.Now}
}

func (s *MongoStore) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// touch adds the bookkeeping every graph write carries.
func (s *MongoStore) touch(update bson.M) bson.M {
	set, _ := update["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
	}
	set["updatedAt"] = s.stamp()
	update["$set"] = set
	update["$inc"] = bson.M{"rev": 1}
	return update
}

func mongoErr(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongodb.IsDuplicateKey(err):
		return ErrDuplicateName
	default:
		return storage.Unavailable(op, err)
	}
}

// Create inserts c, assigning its id and timestamps.
func (s *MongoStore) Create(ctx context.Context, c *Company) error {
	now := s.stamp()
	teams, users := graphDocs(c)
	doc := companyDoc{
		ID:          primitive.NewObjectID(),
		Name:        c.Name,
		Description: c.Description,
		Industry:    c.Industry,
		Image:       c.Image,
		Teams:       teams,
		Users:       users,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return mongoErr("inserting company", err)
	}
	*c = *doc.company()
	return nil
}

func (s *MongoStore) load(ctx context.Context, id string) (*companyDoc, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var doc companyDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mongoErr("loading company", err)
	}
	return &doc, nil
}

// Get returns the company with id.
func (s *MongoStore) Get(ctx context.Context, id string) (*Company, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.company(), nil
}

// List returns all companies ordered by name.
func (s *MongoStore) List(ctx context.Context) ([]*Company, error) {
	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, storage.Unavailable("listing companies", err)
	}
	defer cur.Close(ctx)

	companies := []*Company{}
	for cur.Next(ctx) {
		var doc companyDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, storage.Unavailable("decoding company", err)
		}
		companies = append(companies, doc.company())
	}
	if err := cur.Err(); err != nil {
		return nil, storage.Unavailable("listing companies", err)
	}
	return companies, nil
}

// Update applies the non-nil scalar fields of in.
func (s *MongoStore) Update(ctx context.Context, id string, in UpdateInput) (*Company, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return nil, ErrNotFound
	}
	set := bson.M{"updatedAt": s.stamp()}
	if in.Name != nil {
		set["name"] = *in.Name
	}
	if in.Description != nil {
		set["description"] = *in.Description
	}
	if in.Industry != nil {
		set["industry"] = *in.Industry
	}
	if in.Image != nil {
		set["image"] = *in.Image
	}

	var doc companyDoc
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, mongoErr("updating company", err)
	}
	return doc.company(), nil
}

// Delete removes the company with id.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return ErrNotFound
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return storage.Unavailable("deleting company", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// conditional runs a guarded update. When the guard matches nothing the
// current document is loaded and replay reports why; a replay that succeeds
// means the document changed between the two reads.
func (s *MongoStore) conditional(ctx context.Context, op, companyID string, guard, update bson.M, opts *options.UpdateOptions, replay func(*Company) error) error {
	oid, ok := mongodb.ObjectID(companyID)
	if !ok {
		return ErrNotFound
	}
	guard["_id"] = oid

	if opts == nil {
		opts = options.Update()
	}
	res, err := s.coll.UpdateOne(ctx, guard, s.touch(update), opts)
	if err != nil {
		return storage.Unavailable(op, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	doc, err := s.load(ctx, companyID)
	if err != nil {
		return err
	}
	if err := replay(doc.company()); err != nil {
		return err
	}
	return ErrConflict
}

func (s *MongoStore) AddMember(ctx context.Context, companyID string, m Member) error {
	return s.conditional(ctx, "adding member", companyID,
		bson.M{"users.userId": bson.M{"$ne": m.AccountID}},
		bson.M{"$push": bson.M{"users": toMemberDoc(m)}},
		nil,
		func(c *Company) error { return AddMember(c, m) },
	)
}

func (s *MongoStore) RemoveMember(ctx context.Context, companyID, accountID string) error {
	return s.conditional(ctx, "removing member", companyID,
		bson.M{"users.userId": accountID},
		bson.M{"$pull": bson.M{
			"users":           bson.M{"userId": accountID},
			"teams.$[].users": accountID,
		}},
		nil,
		func(c *Company) error { return RemoveMember(c, accountID) },
	)
}

func (s *MongoStore) SetMemberRoles(ctx context.Context, companyID, accountID string, roles []string) error {
	return s.conditional(ctx, "setting member roles", companyID,
		bson.M{"users.userId": accountID},
		bson.M{"$set": bson.M{"users.$.roles": roles}},
		nil,
		func(c *Company) error { return SetMemberRoles(c, accountID, roles) },
	)
}

func (s *MongoStore) AddTeam(ctx context.Context, companyID string, t Team) error {
	return s.conditional(ctx, "adding team", companyID,
		bson.M{},
		bson.M{"$push": bson.M{"teams": toTeamDoc(t)}},
		nil,
		func(c *Company) error { return AddTeam(c, t) },
	)
}

// UpdateTeam sets the provided fields through the positional operator and
// returns the team as stored afterwards.
func (s *MongoStore) UpdateTeam(ctx context.Context, companyID, teamID string, in TeamInput) (*Team, error) {
	oid, ok := mongodb.ObjectID(companyID)
	if !ok {
		return nil, ErrNotFound
	}

	// Compute the new field values with the pure operation so the defaults
	// for blank input match the other backends.
	applied, err := UpdateTeam(&Company{Teams: []Team{{ID: teamID}}}, teamID, in)
	if err != nil {
		return nil, err
	}

	set := bson.M{}
	if in.Name != nil {
		set["teams.$.name"] = applied.Name
	}
	if in.Description != nil {
		set["teams.$.description"] = applied.Description
	}
	if in.Color != nil {
		set["teams.$.color"] = applied.Color
	}

	var doc companyDoc
	err = s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "teams.teamId": teamID},
		s.touch(bson.M{"$set": set}),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, err := s.load(ctx, companyID); err != nil {
			return nil, err
		}
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, storage.Unavailable("updating team", err)
	}

	t, ok := doc.company().Team(teamID)
	if !ok {
		return nil, ErrConflict
	}
	return &t, nil
}

func (s *MongoStore) RemoveTeam(ctx context.Context, companyID, teamID string) error {
	return s.conditional(ctx, "removing team", companyID,
		bson.M{"teams.teamId": teamID},
		bson.M{"$pull": bson.M{"teams": bson.M{"teamId": teamID}}},
		nil,
		func(c *Company) error { return RemoveTeam(c, teamID) },
	)
}

// AddTeamMember pushes accountID into the team only while the account is a
// company member and not yet in that team.
func (s *MongoStore) AddTeamMember(ctx context.Context, companyID, teamID, accountID string) error {
	return s.conditional(ctx, "adding team member", companyID,
		bson.M{
			"users.userId": accountID,
			"teams": bson.M{"$elemMatch": bson.M{
				"teamId": teamID,
				"users":  bson.M{"$ne": accountID},
			}},
		},
		bson.M{"$push": bson.M{"teams.$[t].users": accountID}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []any{bson.M{"t.teamId": teamID}},
		}),
		func(c *Company) error { return AddTeamMember(c, teamID, accountID) },
	)
}

func (s *MongoStore) RemoveTeamMember(ctx context.Context, companyID, teamID, accountID string) error {
	return s.conditional(ctx, "removing team member", companyID,
		bson.M{"teams": bson.M{"$elemMatch": bson.M{"teamId": teamID, "users": accountID}}},
		bson.M{"$pull": bson.M{"teams.$.users": accountID}},
		nil,
		func(c *Company) error { return RemoveTeamMember(c, teamID, accountID) },
	)
}

// CompaniesWithAccount returns the ids of companies referencing accountID.
func (s *MongoStore) CompaniesWithAccount(ctx context.Context, accountID string) ([]string, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"users.userId": accountID},
		bson.M{"teams.users": accountID},
	}}
	cur, err := s.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, storage.Unavailable("finding companies by account", err)
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, storage.Unavailable("decoding company id", err)
		}
		ids = append(ids, doc.ID.Hex())
	}
	if err := cur.Err(); err != nil {
		return nil, storage.Unavailable("finding companies by account", err)
	}
	return ids, nil
}

// Apply is a compare-and-swap on the rev counter. It reloads and retries when
// another writer got in first, and gives up with ErrConflict.
func (s *MongoStore) Apply(ctx context.Context, id string, fn func(*Company) (bool, error)) error {
	for range applyAttempts {
		doc, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		c := doc.company()
		changed, err := fn(c)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		// Documents written before rev existed match on its absence.
		var rev any = doc.Rev
		if doc.Rev == 0 {
			rev = bson.M{"$in": bson.A{0, nil}}
		}
		teams, users := graphDocs(c)
		res, err := s.coll.UpdateOne(ctx,
			bson.M{"_id": doc.ID, "rev": rev},
			s.touch(bson.M{"$set": bson.M{"teams": teams, "users": users}}),
		)
		if err != nil {
			return storage.Unavailable("applying company change", err)
		}
		if res.MatchedCount > 0 {
			return nil
		}
	}
	return ErrConflict
}
