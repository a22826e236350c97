package store

import (
	"context"

	"github.com/orbitalshelf/server/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Books live in one collection; the userId field scopes the logical per-user
// collection and every query filters on it. Document _id is the book's own
// client-style id string, so migration re-runs overwrite instead of duplicating.

func (db *DB) AllBooks(ctx context.Context, userID string) ([]models.Book, error) {
	cur, err := db.Books().Find(ctx, bson.M{"userId": userID}, options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var books []models.Book
	if err := cur.All(ctx, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (db *DB) CountBooks(ctx context.Context, userID string) (int64, error) {
	return db.Books().CountDocuments(ctx, bson.M{"userId": userID})
}

// SetBook writes the full book document, creating or overwriting by id.
func (db *DB) SetBook(ctx context.Context, book *models.Book) error {
	filter := bson.M{"_id": book.ID, "userId": book.UserID}
	_, err := db.Books().ReplaceOne(ctx, filter, book, options.Replace().SetUpsert(true))
	return err
}

// PatchBook applies a partial $set of only the supplied fields.
func (db *DB) PatchBook(ctx context.Context, userID, bookID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	filter := bson.M{"_id": bookID, "userId": userID}
	_, err := db.Books().UpdateOne(ctx, filter, bson.M{"$set": set})
	return err
}

func (db *DB) DeleteBook(ctx context.Context, userID, bookID string) error {
	_, err := db.Books().DeleteOne(ctx, bson.M{"_id": bookID, "userId": userID})
	return err
}
