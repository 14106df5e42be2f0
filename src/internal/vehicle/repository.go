package vehicle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parking-svc/src/clients"
	"parking-svc/src/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository is the durable store of vehicle sessions.
type Repository interface {
	Create(ctx context.Context, session *Session) (*Session, error)
	FindByID(ctx context.Context, id string) (*Session, error)
	FindAll(ctx context.Context) ([]*Session, error)
	// FindActive returns the active sessions. When some stored sessions cannot
	// be read, the readable ones are returned with a *PartialReadError.
	FindActive(ctx context.Context) ([]*Session, error)
	CountActive(ctx context.Context, class Class, spot int) (int64, error)
	CountActiveByClass(ctx context.Context, class Class) (int64, error)
	Update(ctx context.Context, id string, patch Patch) (*Session, error)
	// Settle closes an active session. It fails with models.ErrAlreadySettled
	// when the session is no longer active.
	Settle(ctx context.Context, id string, exitTime time.Time, cost decimal.Decimal) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// DecodeFailure identifies a stored session that could not be read.
type DecodeFailure struct {
	ID  string
	Err error
}

type PartialReadError struct {
	Failures []DecodeFailure
}

func (e *PartialReadError) Error() string {
	return fmt.Sprintf("%d vehicle documents could not be decoded", len(e.Failures))
}

func (e *PartialReadError) Unwrap() error {
	return models.ErrDatabaseQuery
}

type document struct {
	ID                 primitive.ObjectID   `bson:"_id,omitempty"`
	Plate              string               `bson:"plate"`
	VehicleClass       string               `bson:"vehicle_class"`
	IsElectricOrHybrid bool                 `bson:"is_electric_or_hybrid"`
	AssignedSpot       int                  `bson:"assigned_spot"`
	EntryTime          time.Time            `bson:"entry_time"`
	ExitTime           *time.Time           `bson:"exit_time,omitempty"`
	Cost               primitive.Decimal128 `bson:"cost"`
	IsFalsePositive    bool                 `bson:"is_false_positive"`
	Active             bool                 `bson:"active"`
}

type repository struct {
	collection *mongo.Collection
}

func NewVehicleRepository(db *clients.MongoDB, collectionName string) Repository {
	collection := db.Database.Collection(collectionName)
	return &repository{collection: collection}
}

// EnsureIndexes creates the partial unique index that keeps one active
// session per (class, spot).
func EnsureIndexes(ctx context.Context, db *clients.MongoDB, collectionName string) error {
	collection := db.Database.Collection(collectionName)

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "vehicle_class", Value: 1}, {Key: "assigned_spot", Value: 1}},
			Options: options.Index().
				SetName("uniq_active_class_spot").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
		{
			Keys:    bson.D{{Key: "active", Value: 1}, {Key: "entry_time", Value: 1}},
			Options: options.Index().SetName("active_entry_time"),
		},
	})
	if err != nil {
		logrus.WithError(err).WithField("collection", collectionName).Error("Failed to create vehicle indexes")
		return fmt.Errorf("%w: %v", models.ErrDatabaseConnection, err)
	}

	return nil
}

func (r *repository) Create(ctx context.Context, session *Session) (*Session, error) {
	doc, err := toDocument(session)
	if err != nil {
		return nil, err
	}
	doc.ID = primitive.NilObjectID

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, models.ErrSpotTaken
		}
		logrus.WithError(err).WithField("plate", session.Plate).Error("Failed to insert vehicle")
		return nil, fmt.Errorf("%w: %v", models.ErrDatabaseInsert, err)
	}

	created := session.Clone()
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		created.ID = oid.Hex()
	}

	return created, nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*Session, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrVehicleNotFound
	}

	var doc document
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrVehicleNotFound
		}
		logrus.WithError(err).WithField("vehicle_id", id).Error("Failed to get vehicle")
		return nil, fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
	}

	return doc.toSession()
}

// FindAll skips documents that cannot be decoded.
func (r *repository) FindAll(ctx context.Context) ([]*Session, error) {
	sessions, _, err := r.find(ctx, bson.M{})
	return sessions, err
}

func (r *repository) FindActive(ctx context.Context) ([]*Session, error) {
	sessions, failures, err := r.find(ctx, bson.M{"active": true})
	if err != nil {
		return nil, err
	}
	if len(failures) > 0 {
		return sessions, &PartialReadError{Failures: failures}
	}
	return sessions, nil
}

func (r *repository) find(ctx context.Context, filter bson.M) ([]*Session, []DecodeFailure, error) {
	opts := options.Find().SetSort(bson.D{{Key: "entry_time", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.WithError(err).Error("Failed to find vehicles")
		return nil, nil, fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
	}
	defer cursor.Close(ctx)

	sessions := make([]*Session, 0)
	var failures []DecodeFailure
	for cursor.Next(ctx) {
		var doc document
		err := cursor.Decode(&doc)
		if err == nil {
			var session *Session
			session, err = doc.toSession()
			if err == nil {
				sessions = append(sessions, session)
				continue
			}
		}

		id := rawID(cursor.Current)
		logrus.WithError(err).WithField("vehicle_id", id).Error("Failed to decode vehicle")
		failures = append(failures, DecodeFailure{ID: id, Err: err})
	}

	if err := cursor.Err(); err != nil {
		logrus.WithError(err).Error("Cursor error")
		return nil, nil, fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
	}

	return sessions, failures, nil
}

func rawID(raw bson.Raw) string {
	value, err := raw.LookupErr("_id")
	if err != nil {
		return ""
	}
	if oid, ok := value.ObjectIDOK(); ok {
		return oid.Hex()
	}
	return value.String()
}

func (r *repository) CountActive(ctx context.Context, class Class, spot int) (int64, error) {
	return r.count(ctx, bson.M{
		"vehicle_class": string(class),
		"assigned_spot": spot,
		"active":        true,
	})
}

func (r *repository) CountActiveByClass(ctx context.Context, class Class) (int64, error) {
	return r.count(ctx, bson.M{
		"vehicle_class": string(class),
		"active":        true,
	})
}

func (r *repository) count(ctx context.Context, filter bson.M) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("Failed to count vehicles")
		return 0, fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
	}
	return count, nil
}

func (r *repository) Update(ctx context.Context, id string, patch Patch) (*Session, error) {
	if patch.IsEmpty() {
		return r.FindByID(ctx, id)
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrVehicleNotFound
	}

	set := bson.M{}
	if patch.AssignedSpot != nil {
		set["assigned_spot"] = *patch.AssignedSpot
	}
	if patch.IsElectricOrHybrid != nil {
		set["is_electric_or_hybrid"] = *patch.IsElectricOrHybrid
	}
	if patch.ExitTime != nil {
		set["exit_time"] = *patch.ExitTime
		set["active"] = false
	}
	if patch.IsFalsePositive != nil {
		set["is_false_positive"] = *patch.IsFalsePositive
	}

	return r.findOneAndSet(ctx, bson.M{"_id": oid}, set, models.ErrVehicleNotFound)
}

func (r *repository) Settle(ctx context.Context, id string, exitTime time.Time, cost decimal.Decimal) (*Session, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrVehicleNotFound
	}

	amount, err := toDecimal128(cost)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": oid, "active": true}
	set := bson.M{
		"exit_time": exitTime,
		"cost":      amount,
		"active":    false,
	}

	return r.findOneAndSet(ctx, filter, set, models.ErrAlreadySettled)
}

func (r *repository) findOneAndSet(ctx context.Context, filter, set bson.M, notFound error) (*Session, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc document
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, models.ErrSpotTaken
		}
		logrus.WithError(err).WithField("filter", filter).Error("Failed to update vehicle")
		return nil, fmt.Errorf("%w: %v", models.ErrDatabaseUpdate, err)
	}

	return doc.toSession()
}

func (r *repository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.ErrVehicleNotFound
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		logrus.WithError(err).WithField("vehicle_id", id).Error("Failed to delete vehicle")
		return fmt.Errorf("%w: %v", models.ErrDatabaseDelete, err)
	}
	if result.DeletedCount == 0 {
		return models.ErrVehicleNotFound
	}

	return nil
}

func toDocument(s *Session) (*document, error) {
	cost, err := toDecimal128(s.Cost)
	if err != nil {
		return nil, err
	}

	doc := &document{
		Plate:              s.Plate,
		VehicleClass:       string(s.VehicleClass),
		IsElectricOrHybrid: s.IsElectricOrHybrid,
		AssignedSpot:       s.AssignedSpot,
		EntryTime:          s.EntryTime,
		ExitTime:           s.ExitTime,
		Cost:               cost,
		IsFalsePositive:    s.IsFalsePositive,
		Active:             s.IsActive(),
	}

	if s.ID != "" {
		oid, err := primitive.ObjectIDFromHex(s.ID)
		if err != nil {
			return nil, models.ErrVehicleNotFound
		}
		doc.ID = oid
	}

	return doc, nil
}

func (d *document) toSession() (*Session, error) {
	cost, err := decimal.NewFromString(d.Cost.String())
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cost %q", models.ErrDatabaseQuery, d.Cost.String())
	}

	session := &Session{
		ID:                 d.ID.Hex(),
		Plate:              d.Plate,
		VehicleClass:       Class(d.VehicleClass),
		IsElectricOrHybrid: d.IsElectricOrHybrid,
		AssignedSpot:       d.AssignedSpot,
		EntryTime:          d.EntryTime,
		Cost:               cost,
		IsFalsePositive:    d.IsFalsePositive,
	}
	if d.ExitTime != nil {
		exit := *d.ExitTime
		session.ExitTime = &exit
	}

	return session, nil
}

func toDecimal128(amount decimal.Decimal) (primitive.Decimal128, error) {
	value, err := primitive.ParseDecimal128(amount.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("%w: invalid amount %s", models.ErrValidation, amount.String())
	}
	return value, nil
}
