package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bigkaa/filehub/internal/domain/model"
)

// FilesCollection — имя коллекции метаданных в MongoDB.
const FilesCollection = "files"

// fileDocument — документ коллекции files.
type fileDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Filename     string             `bson:"filename"`
	OriginalName string             `bson:"originalName"`
	Path         string             `bson:"path"`
	Size         int64              `bson:"size"`
	MimeType     string             `bson:"mimetype"`
	UploadDate   time.Time          `bson:"uploadDate"`
}

func (d *fileDocument) record() *model.FileRecord {
	return &model.FileRecord{
		ID:           d.ID.Hex(),
		StorageKey:   d.Filename,
		OriginalName: d.OriginalName,
		Path:         d.Path,
		Size:         d.Size,
		MimeType:     d.MimeType,
		UploadedAt:   d.UploadDate.UTC(),
	}
}

// mongoFileRepo — реализация FileRepository на MongoDB.
type mongoFileRepo struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoFileRepository создаёт репозиторий метаданных на коллекции MongoDB.
func NewMongoFileRepository(coll *mongo.Collection) FileRepository {
	return &mongoFileRepo{coll: coll, now: time.Now}
}

// EnsureMongoIndexes создаёт индексы коллекции: уникальный по filename
// и составной для сортировки списка.
func EnsureMongoIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "filename", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("filename_unique"),
		},
		{
			Keys:    bson.D{{Key: "uploadDate", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("upload_date_desc"),
		},
	})
	if err != nil {
		return fmt.Errorf("ошибка создания индексов коллекции %s: %w", coll.Name(), err)
	}
	return nil
}

func (r *mongoFileRepo) Insert(ctx context.Context, f model.NewFile) (*model.FileRecord, error) {
	if err := validateNew(f); err != nil {
		return nil, err
	}

	doc := &fileDocument{
		ID:           primitive.NewObjectID(),
		Filename:     f.StorageKey,
		OriginalName: f.OriginalName,
		Path:         f.Path,
		Size:         f.Size,
		MimeType:     f.MimeType,
		// MongoDB хранит время с точностью до миллисекунд
		UploadDate: r.now().UTC().Truncate(time.Millisecond),
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: storage key %s уже занят", ErrConflict, f.StorageKey)
		}
		return nil, fmt.Errorf("ошибка вставки документа файла: %w", err)
	}
	return doc.record(), nil
}

func (r *mongoFileRepo) List(ctx context.Context) ([]*model.FileRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "uploadDate", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer cursor.Close(ctx)

	result := make([]*model.FileRecord, 0)
	for cursor.Next(ctx) {
		var doc fileDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("ошибка декодирования документа: %w", err)
		}
		result = append(result, doc.record())
	}
	return result, cursor.Err()
}

func (r *mongoFileRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (r *mongoFileRepo) GetByStorageKey(ctx context.Context, key string) (*model.FileRecord, error) {
	return r.findOne(ctx, bson.D{{Key: "filename", Value: key}})
}

func (r *mongoFileRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("ошибка удаления документа файла: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoFileRepo) findOne(ctx context.Context, filter bson.D) (*model.FileRecord, error) {
	var doc fileDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения документа файла: %w", err)
	}
	return doc.record(), nil
}
