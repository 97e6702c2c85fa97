package account

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/talentcontrolhr/talentcontrol/internal/storage"
	"github.com/talentcontrolhr/talentcontrol/internal/storage/mongodb"
)

type accountDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Username  string             `bson:"username"`
	Name      string             `bson:"name"`
	Surnames  string             `bson:"surnames"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	Role      string             `bson:"role"`
	Company   *string            `bson:"company,omitempty"`
	Team      *string            `bson:"team,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d *accountDoc) account() *Account {
	return &Account{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Name:         d.Name,
		Surnames:     d.Surnames,
		Email:        d.Email,
		PasswordHash: d.Password,
		Role:         d.Role,
		CompanyID:    d.Company,
		TeamID:       d.Team,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// MongoStore is a Repository backed by the users collection.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoStore creates a store on the accounts collection of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(mongodb.AccountsCollection), now: time.Now}
}

func mongoErr(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongodb.IsDuplicateKey(err):
		return ErrDuplicateIdentity
	default:
		return storage.Unavailable(op, err)
	}
}

// Create inserts a, assigning its id and timestamps.
func (s *MongoStore) Create(ctx context.Context, a *Account) error {
	now := s.now().UTC().Truncate(time.Millisecond)
	doc := accountDoc{
		ID:        primitive.NewObjectID(),
		Username:  a.Username,
		Name:      a.Name,
		Surnames:  a.Surnames,
		Email:     a.Email,
		Password:  a.PasswordHash,
		Role:      a.Role,
		Company:   a.CompanyID,
		Team:      a.TeamID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return mongoErr("inserting account", err)
	}
	*a = *doc.account()
	return nil
}

// GetByID returns the account with id.
func (s *MongoStore) GetByID(ctx context.Context, id string) (*Account, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, "getting account by id", bson.M{"_id": oid})
}

// FindByIdentifier returns the account whose username or email is identifier.
// A username match wins over an email match.
func (s *MongoStore) FindByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	a, err := s.findOne(ctx, "finding account by username", bson.M{"username": identifier})
	if !errors.Is(err, ErrNotFound) {
		return a, err
	}
	return s.findOne(ctx, "finding account by email", bson.M{"email": strings.ToLower(identifier)})
}

func (s *MongoStore) findOne(ctx context.Context, op string, filter bson.M) (*Account, error) {
	var doc accountDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mongoErr(op, err)
	}
	return doc.account(), nil
}

// IdentityTaken reports whether another account uses username or email. An
// email also collides with a username that folds to it.
func (s *MongoStore) IdentityTaken(ctx context.Context, username, email, excludeID string) (bool, error) {
	var or bson.A
	if username != "" {
		or = append(or, bson.M{"username": username}, bson.M{"email": strings.ToLower(username)})
	}
	if email != "" {
		or = append(or, bson.M{"email": email}, bson.M{"username": primitive.Regex{
			Pattern: "^" + regexp.QuoteMeta(email) + "$",
			Options: "i",
		}})
	}
	if len(or) == 0 {
		return false, nil
	}
	filter := bson.M{"$or": or}
	if oid, ok := mongodb.ObjectID(excludeID); ok {
		filter["_id"] = bson.M{"$ne": oid}
	}
	n, err := s.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, storage.Unavailable("checking identity", err)
	}
	return n > 0, nil
}

// List returns all accounts, newest first.
func (s *MongoStore) List(ctx context.Context) ([]*Account, error) {
	return s.find(ctx, "listing accounts", bson.M{})
}

// ListByIDs returns the accounts with the given ids, skipping unknown ids.
func (s *MongoStore) ListByIDs(ctx context.Context, ids []string) ([]*Account, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, ok := mongodb.ObjectID(id); ok {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []*Account{}, nil
	}
	return s.find(ctx, "listing accounts by id", bson.M{"_id": bson.M{"$in": oids}})
}

func (s *MongoStore) find(ctx context.Context, op string, filter bson.M) ([]*Account, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, storage.Unavailable(op, err)
	}
	defer cur.Close(ctx)

	accounts := []*Account{}
	for cur.Next(ctx) {
		var doc accountDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, storage.Unavailable("decoding account", err)
		}
		accounts = append(accounts, doc.account())
	}
	if err := cur.Err(); err != nil {
		return nil, storage.Unavailable(op, err)
	}
	return accounts, nil
}

// Update applies the non-nil fields of in and returns the updated account.
func (s *MongoStore) Update(ctx context.Context, id string, in UpdateInput) (*Account, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return nil, ErrNotFound
	}

	set := bson.M{"updatedAt": s.now().UTC().Truncate(time.Millisecond)}
	unset := bson.M{}
	if in.Username != nil {
		set["username"] = *in.Username
	}
	if in.Name != nil {
		set["name"] = *in.Name
	}
	if in.Surnames != nil {
		set["surnames"] = *in.Surnames
	}
	if in.Email != nil {
		set["email"] = *in.Email
	}
	if in.Role != nil {
		set["role"] = *in.Role
	}
	affiliation := func(field string, v *string) {
		if v == nil {
			return
		}
		if *v == "" {
			unset[field] = ""
			return
		}
		set[field] = *v
	}
	affiliation("company", in.CompanyID)
	affiliation("team", in.TeamID)

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var doc accountDoc
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, mongoErr("updating account", err)
	}
	return doc.account(), nil
}

// SetPasswordHash replaces the digest of the account with id.
func (s *MongoStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return ErrNotFound
	}
	res, err := s.coll.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"password":  hash,
		"updatedAt": s.now().UTC().Truncate(time.Millisecond),
	}})
	if err != nil {
		return storage.Unavailable("setting password hash", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the account with id.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return ErrNotFound
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return storage.Unavailable("deleting account", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
