package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/noah-isme/student-roster-api/internal/models"
	appErrors "github.com/noah-isme/student-roster-api/pkg/errors"
)

// collationSecondary compares base letters and accents but not case.
const collationSecondary = 2

var studentSearchFields = []string{"student_id", "firstname", "lastname", "nickname"}

type studentDocument struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	StudentID string        `bson:"student_id"`
	FirstName string        `bson:"firstname"`
	LastName  string        `bson:"lastname"`
	Nickname  string        `bson:"nickname"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

func (d studentDocument) model() models.Student {
	return models.Student{
		ID:        d.ID.Hex(),
		StudentID: d.StudentID,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Nickname:  d.Nickname,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// StudentMongoRepository stores students as documents in a MongoDB collection.
type StudentMongoRepository struct {
	coll      *mongo.Collection
	collation *options.Collation
}

// NewStudentMongoRepository binds the repository to a collection. Reads use a
// case-insensitive collation for the given locale.
func NewStudentMongoRepository(db *mongo.Database, collection, locale string) *StudentMongoRepository {
	return &StudentMongoRepository{
		coll:      db.Collection(collection),
		collation: &options.Collation{Locale: locale, Strength: collationSecondary},
	}
}

// EnsureIndexes creates the unique natural key index.
func (r *StudentMongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "student_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("student_id_unique"),
	})
	if err != nil {
		return fmt.Errorf("create student indexes: %w", err)
	}
	return nil
}

// List returns one page of students ordered by insertion and the number of
// documents matching the filter.
func (r *StudentMongoRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	query := studentSearchFilter(filter.Query)

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(filter.Offset())).
		SetLimit(int64(filter.Limit)).
		SetCollation(r.collation)
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}
	var docs []studentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode students: %w", err)
	}

	total, err := r.coll.CountDocuments(ctx, query, options.Count().SetCollation(r.collation))
	if err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}

	students := make([]models.Student, 0, len(docs))
	for _, doc := range docs {
		students = append(students, doc.model())
	}
	return students, int(total), nil
}

// studentSearchFilter matches the query as a case-insensitive substring of
// any searchable field. An empty query matches everything.
func studentSearchFilter(query string) bson.M {
	if query == "" {
		return bson.M{}
	}
	pattern := bson.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	or := make(bson.A, 0, len(studentSearchFields))
	for _, field := range studentSearchFields {
		or = append(or, bson.M{field: pattern})
	}
	return bson.M{"$or": or}
}

// FindByID fetches a student by its ObjectID hex string.
func (r *StudentMongoRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, appErrors.ErrRecordNotFound
	}
	var doc studentDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.ErrRecordNotFound
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	student := doc.model()
	return &student, nil
}

// ExistsByStudentID performs an exact match on the natural key, ignoring the
// document with excludeID.
func (r *StudentMongoRepository) ExistsByStudentID(ctx context.Context, studentID, excludeID string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, uniquenessFilter(studentID, excludeID), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check student_id: %w", err)
	}
	return n > 0, nil
}

func uniquenessFilter(studentID, excludeID string) bson.M {
	filter := bson.M{"student_id": studentID}
	if oid, err := bson.ObjectIDFromHex(excludeID); err == nil {
		filter["_id"] = bson.M{"$ne": oid}
	}
	return filter
}

// Create inserts a new document and assigns the generated identifier.
func (r *StudentMongoRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	doc := studentDocument{
		ID:        bson.NewObjectID(),
		StudentID: student.StudentID,
		FirstName: student.FirstName,
		LastName:  student.LastName,
		Nickname:  student.Nickname,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return appErrors.ErrDuplicateKey
		}
		return fmt.Errorf("create student: %w", err)
	}
	*student = doc.model()
	return nil
}

// Update replaces the mutable fields of an existing document.
func (r *StudentMongoRepository) Update(ctx context.Context, student *models.Student) error {
	oid, err := bson.ObjectIDFromHex(student.ID)
	if err != nil {
		return appErrors.ErrRecordNotFound
	}
	student.UpdatedAt = time.Now().UTC()
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"student_id": student.StudentID,
		"firstname":  student.FirstName,
		"lastname":   student.LastName,
		"nickname":   student.Nickname,
		"updated_at": student.UpdatedAt,
	}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return appErrors.ErrDuplicateKey
		}
		return fmt.Errorf("update student: %w", err)
	}
	if res.MatchedCount == 0 {
		return appErrors.ErrRecordNotFound
	}
	return nil
}

// Delete removes a document permanently.
func (r *StudentMongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return appErrors.ErrRecordNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if res.DeletedCount == 0 {
		return appErrors.ErrRecordNotFound
	}
	return nil
}

// Ping verifies the connection of the underlying client.
func (r *StudentMongoRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}
