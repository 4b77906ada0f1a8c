package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
)

const (
	collectionIdentities = "users"
	collectionCounters   = "counters"
)

// IdentityRepository stores identities as documents keyed by a numeric id
// drawn from a counters collection.
type IdentityRepository struct {
	col      *mongo.Collection
	counters *mongo.Collection
}

var (
	_ ports.IdentityRepository = (*IdentityRepository)(nil)
	_ ports.Pinger             = (*IdentityRepository)(nil)
)

func NewIdentityRepository(db *mongo.Database) *IdentityRepository {
	return &IdentityRepository{
		col:      db.Collection(collectionIdentities),
		counters: db.Collection(collectionCounters),
	}
}

type identityDoc struct {
	ID             int64     `bson:"_id"`
	Email          string    `bson:"email"`
	Username       string    `bson:"username"`
	FullName       *string   `bson:"full_name,omitempty"`
	HashedPassword string    `bson:"hashed_password"`
	IsActive       bool      `bson:"is_active"`
	IsSuperuser    bool      `bson:"is_superuser"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func (d identityDoc) toDomain() *domain.Identity {
	return &domain.Identity{
		ID:             d.ID,
		Email:          d.Email,
		Username:       d.Username,
		FullName:       d.FullName,
		HashedPassword: d.HashedPassword,
		IsActive:       d.IsActive,
		IsSuperuser:    d.IsSuperuser,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

func (r *IdentityRepository) Get(ctx context.Context, id int64) (*domain.Identity, error) {
	return r.findOne(ctx, "get identity", bson.M{"_id": id})
}

func (r *IdentityRepository) GetByField(ctx context.Context, field domain.LookupField, value string) (*domain.Identity, error) {
	if !domain.ValidIdentityField(field) {
		return nil, domain.ErrValidation
	}
	return r.findOne(ctx, "get identity by "+string(field), bson.M{string(field): value})
}

// List returns identities ordered by id.
func (r *IdentityRepository) List(ctx context.Context, offset, limit int) ([]*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, domain.Unavailable("list identities", err)
	}
	defer cur.Close(ctx)

	var docs []identityDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, domain.Unavailable("list identities", err)
	}
	out := make([]*domain.Identity, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *IdentityRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, domain.Unavailable("count identities", err)
	}
	return n, nil
}

func (r *IdentityRepository) Create(ctx context.Context, in domain.NewIdentity) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := r.nextID(ctx)
	if err != nil {
		return nil, domain.Unavailable("create identity", err)
	}
	now := timestamp()
	doc := identityDoc{
		ID:             id,
		Email:          in.Email,
		Username:       in.Username,
		FullName:       in.FullName,
		HashedPassword: in.HashedPassword,
		IsActive:       in.IsActive,
		IsSuperuser:    in.IsSuperuser,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, duplicateField(err)
		}
		return nil, domain.Unavailable("create identity", err)
	}
	return doc.toDomain(), nil
}

// Update applies $set with only the fields present in patch.
func (r *IdentityRepository) Update(ctx context.Context, id int64, patch domain.IdentityPatch) (*domain.Identity, error) {
	set := patchSet(patch)
	if len(set) == 0 {
		return r.Get(ctx, id)
	}
	set["updated_at"] = timestamp()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc identityDoc
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, duplicateField(err)
		}
		return nil, domain.Unavailable("update identity", err)
	}
	return doc.toDomain(), nil
}

func (r *IdentityRepository) Remove(ctx context.Context, id int64) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc identityDoc
	if err := r.col.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Unavailable("remove identity", err)
	}
	return doc.toDomain(), nil
}

func (r *IdentityRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := r.col.Database().Client().Ping(ctx, nil); err != nil {
		return domain.Unavailable("ping mongo", err)
	}
	return nil
}

// EnsureIndexes creates the unique email and username indexes.
func (r *IdentityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_email")},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_username")},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *IdentityRepository) findOne(ctx context.Context, op string, filter bson.M) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc identityDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Unavailable(op, err)
	}
	return doc.toDomain(), nil
}

// nextID atomically increments the identity sequence.
func (r *IdentityRepository) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": collectionIdentities},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

func patchSet(p domain.IdentityPatch) bson.M {
	set := bson.M{}
	if p.Email != nil {
		set["email"] = *p.Email
	}
	if p.Username != nil {
		set["username"] = *p.Username
	}
	if p.FullName != nil {
		set["full_name"] = *p.FullName
	}
	if p.HashedPassword != nil {
		set["hashed_password"] = *p.HashedPassword
	}
	if p.IsActive != nil {
		set["is_active"] = *p.IsActive
	}
	if p.IsSuperuser != nil {
		set["is_superuser"] = *p.IsSuperuser
	}
	return set
}

func duplicateField(err error) error {
	if strings.Contains(err.Error(), "username") {
		return domain.NewConflict(domain.FieldUsername)
	}
	return domain.NewConflict(domain.FieldEmail)
}

// timestamp is the current time at BSON datetime precision, so a created
// document equals its stored form.
func timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
