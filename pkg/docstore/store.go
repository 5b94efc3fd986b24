package docstore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no object matches the id.
var ErrNotFound = errors.New("docstore: object not found")

// ErrInvalidClass is returned for class names that are not identifiers.
var ErrInvalidClass = errors.New("docstore: invalid class name")

// DefaultLimit caps Find when the caller passes no limit.
const DefaultLimit = 100

// TimeLayout is how createdAt/updatedAt are rendered.
const TimeLayout = "2006-01-02T15:04:05.000Z"

var classPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Object is one stored document as the API sees it: objectId, createdAt and
// updatedAt are top-level keys next to user fields.
type Object map[string]interface{}

// Store keeps one collection per class.
type Store struct {
	db  *mongo.Database
	now func() time.Time
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// ValidClass reports whether name can be used as a class (collection) name.
func ValidClass(name string) bool {
	return classPattern.MatchString(name)
}

// NewObjectID returns a 10 character alphanumeric id.
func NewObjectID() string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 10)
	max := big.NewInt(int64(len(alphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Sprintf("docstore: read random: %v", err))
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b)
}

// Create inserts fields as a new object and returns its objectId and createdAt.
func (s *Store) Create(ctx context.Context, class string, fields Object) (Object, error) {
	col, err := s.collection(class)
	if err != nil {
		return nil, err
	}

	now := s.now()
	doc := bson.M{}
	for k, v := range Sanitize(fields) {
		doc[k] = v
	}
	id := NewObjectID()
	doc["_id"] = id
	doc["createdAt"] = now
	doc["updatedAt"] = now

	if _, err := col.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("docstore: insert %s: %w", class, err)
	}
	return Object{"objectId": id, "createdAt": now.Format(TimeLayout)}, nil
}

// Get returns one object or ErrNotFound.
func (s *Store) Get(ctx context.Context, class, id string) (Object, error) {
	col, err := s.collection(class)
	if err != nil {
		return nil, err
	}

	var doc bson.M
	err = col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: get %s/%s: %w", class, id, err)
	}
	return fromDocument(doc), nil
}

// Find returns objects matching where, oldest first. A limit <= 0 means
// DefaultLimit.
func (s *Store) Find(ctx context.Context, class string, where Object, limit int64) ([]Object, error) {
	col, err := s.collection(class)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	filter := bson.M{}
	for k, v := range where {
		if k == "objectId" {
			k = "_id"
		}
		filter[k] = v
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(limit)

	cur, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("docstore: find %s: %w", class, err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("docstore: find %s: %w", class, err)
	}

	out := make([]Object, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDocument(d))
	}
	return out, nil
}

// Update sets fields on an existing object and returns the new updatedAt.
func (s *Store) Update(ctx context.Context, class, id string, fields Object) (Object, error) {
	col, err := s.collection(class)
	if err != nil {
		return nil, err
	}

	now := s.now()
	set := bson.M{"updatedAt": now}
	for k, v := range Sanitize(fields) {
		set[k] = v
	}

	res, err := col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("docstore: update %s/%s: %w", class, id, err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return Object{"updatedAt": now.Format(TimeLayout)}, nil
}

// Delete removes one object or returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, class, id string) error {
	col, err := s.collection(class)
	if err != nil {
		return err
	}

	res, err := col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("docstore: delete %s/%s: %w", class, id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DropClass drops the class collection. Dropping a missing class is not an error.
func (s *Store) DropClass(ctx context.Context, class string) error {
	col, err := s.collection(class)
	if err != nil {
		return err
	}
	if err := col.Drop(ctx); err != nil {
		return fmt.Errorf("docstore: drop class %s: %w", class, err)
	}
	return nil
}

func (s *Store) collection(class string) (*mongo.Collection, error) {
	if !ValidClass(class) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidClass, class)
	}
	return s.db.Collection(class), nil
}

// Sanitize drops keys the server owns (objectId, createdAt, updatedAt) and
// keys that MongoDB would treat specially ("_" or "$" prefix, dotted paths).
func Sanitize(fields Object) Object {
	out := make(Object, len(fields))
	for k, v := range fields {
		switch {
		case k == "objectId", k == "createdAt", k == "updatedAt":
		case k == "", strings.HasPrefix(k, "_"), strings.HasPrefix(k, "$"), strings.Contains(k, "."):
		default:
			out[k] = v
		}
	}
	return out
}

func fromDocument(doc bson.M) Object {
	out := make(Object, len(doc))
	for k, v := range doc {
		switch k {
		case "_id":
			out["objectId"] = v
		case "createdAt", "updatedAt":
			out[k] = formatTime(v)
		default:
			out[k] = v
		}
	}
	return out
}

func formatTime(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(TimeLayout)
	case primitive.DateTime:
		return t.Time().UTC().Format(TimeLayout)
	default:
		return v
	}
}
