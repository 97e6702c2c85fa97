package schedule

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

type shiftDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	CompanyID string             `bson:"companyId"`
	UserID    string             `bson:"userId"`
	TeamID    *string            `bson:"teamId,omitempty"`
	StartsAt  time.Time          `bson:"startsAt"`
	EndsAt    time.Time          `bson:"endsAt"`
	Notes     string             `bson:"notes"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d *shiftDoc) shift() *Shift {
	return &Shift{
		ID:        d.ID.Hex(),
		CompanyID: d.CompanyID,
		AccountID: d.UserID,
		TeamID:    d.TeamID,
		StartsAt:  d.StartsAt,
		EndsAt:    d.EndsAt,
		Notes:     d.Notes,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type vacationDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	CompanyID string             `bson:"companyId"`
	UserID    string             `bson:"userId"`
	StartDate time.Time          `bson:"startDate"`
	EndDate   time.Time          `bson:"endDate"`
	Reason    string             `bson:"reason"`
	Status    string             `bson:"status"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d *vacationDoc) vacation() *Vacation {
	return &Vacation{
		ID:        d.ID.Hex(),
		CompanyID: d.CompanyID,
		AccountID: d.UserID,
		StartDate: d.StartDate,
		EndDate:   d.EndDate,
		Reason:    d.Reason,
		Status:    d.Status,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// MongoStore is a Repository backed by the shifts and vacations collections.
type MongoStore struct {
	shifts    *mongo.Collection
	vacations *mongo.Collection
	now       func() time.Time
}

// NewMongoStore creates a schedule store on db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		shifts:    db.Collection(mongodb.ShiftsCollection),
		vacations: db.Collection(mongodb.VacationsCollection),
		now:       time.Now,
	}
}

func (m *MongoStore) stamp() time.Time {
	return m.now().UTC().Truncate(time.Millisecond)
}

func mongoErr(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return storage.Unavailable(op, err)
}

// filter builds an equality filter from non-empty values.
func filter(conds map[string]string) bson.M {
	f := bson.M{}
	for k, v := range conds {
		if v != "" {
			f[k] = v
		}
	}
	return f
}

func (m *MongoStore) CreateShift(ctx context.Context, s *Shift) error {
	now := m.stamp()
	doc := shiftDoc{
		ID:        primitive.NewObjectID(),
		CompanyID: s.CompanyID,
		UserID:    s.AccountID,
		TeamID:    s.TeamID,
		StartsAt:  s.StartsAt,
		EndsAt:    s.EndsAt,
		Notes:     s.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := m.shifts.InsertOne(ctx, doc); err != nil {
		return storage.Unavailable("inserting shift", err)
	}
	*s = *doc.shift()
	return nil
}

func (m *MongoStore) GetShift(ctx context.Context, id string) (*Shift, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var doc shiftDoc
	if err := m.shifts.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mongoErr("getting shift", err)
	}
	return doc.shift(), nil
}

func (m *MongoStore) ListShifts(ctx context.Context, f ShiftFilter) ([]*Shift, error) {
	cur, err := m.shifts.Find(ctx,
		filter(map[string]string{"companyId": f.CompanyID, "userId": f.AccountID}),
		options.Find().SetSort(bson.D{{Key: "startsAt", Value: 1}}),
	)
	if err != nil {
		return nil, storage.Unavailable("listing shifts", err)
	}
	defer cur.Close(ctx)

	shifts := []*Shift{}
	for cur.Next(ctx) {
		var doc shiftDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, storage.Unavailable("decoding shift", err)
		}
		shifts = append(shifts, doc.shift())
	}
	if err := cur.Err(); err != nil {
		return nil, storage.Unavailable("listing shifts", err)
	}
	return shifts, nil
}

func (m *MongoStore) UpdateShift(ctx context.Context, s *Shift) error {
	oid, ok := mongodb.ObjectID(s.ID)
	if !ok {
		return ErrNotFound
	}
	set := bson.M{
		"startsAt":  s.StartsAt,
		"endsAt":    s.EndsAt,
		"notes":     s.Notes,
		"updatedAt": m.stamp(),
	}
	update := bson.M{"$set": set}
	if s.TeamID != nil {
		set["teamId"] = *s.TeamID
	} else {
		update["$unset"] = bson.M{"teamId": ""}
	}

	var doc shiftDoc
	err := m.shifts.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return mongoErr("updating shift", err)
	}
	*s = *doc.shift()
	return nil
}

func (m *MongoStore) DeleteShift(ctx context.Context, id string) error {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return ErrNotFound
	}
	res, err := m.shifts.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return storage.Unavailable("deleting shift", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStore) CreateVacation(ctx context.Context, v *Vacation) error {
	now := m.stamp()
	doc := vacationDoc{
		ID:        primitive.NewObjectID(),
		CompanyID: v.CompanyID,
		UserID:    v.AccountID,
		StartDate: v.StartDate,
		EndDate:   v.EndDate,
		Reason:    v.Reason,
		Status:    v.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := m.vacations.InsertOne(ctx, doc); err != nil {
		return storage.Unavailable("inserting vacation", err)
	}
	*v = *doc.vacation()
	return nil
}

func (m *MongoStore) GetVacation(ctx context.Context, id string) (*Vacation, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var doc vacationDoc
	if err := m.vacations.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mongoErr("getting vacation", err)
	}
	return doc.vacation(), nil
}

func (m *MongoStore) ListVacations(ctx context.Context, f VacationFilter) ([]*Vacation, error) {
	cur, err := m.vacations.Find(ctx,
		filter(map[string]string{"companyId": f.CompanyID, "userId": f.AccountID, "status": f.Status}),
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, storage.Unavailable("listing vacations", err)
	}
	defer cur.Close(ctx)

	vacations := []*Vacation{}
	for cur.Next(ctx) {
		var doc vacationDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, storage.Unavailable("decoding vacation", err)
		}
		vacations = append(vacations, doc.vacation())
	}
	if err := cur.Err(); err != nil {
		return nil, storage.Unavailable("listing vacations", err)
	}
	return vacations, nil
}

func (m *MongoStore) SetVacationStatus(ctx context.Context, id, status string) (*Vacation, error) {
	oid, ok := mongodb.ObjectID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var doc vacationDoc
	err := m.vacations.FindOneAndUpdate(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"status": status, "updatedAt": m.stamp()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, mongoErr("updating vacation status", err)
	}
	return doc.vacation(), nil
}
