package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bookgraph/pkg/models"
)

const defaultMongoDatabase = "library"

type bookDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Published *int               `bson:"published,omitempty"`
	Genres    []string           `bson:"genres"`
	Author    primitive.ObjectID `bson:"author"`
}

type authorDoc struct {
	ID   primitive.ObjectID `bson:"_id,omitempty"`
	Name string             `bson:"name"`
	Born *int               `bson:"born,omitempty"`
}

type userDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Username      string             `bson:"username"`
	FavoriteGenre string             `bson:"favoriteGenre"`
	PasswordHash  string             `bson:"passwordHash,omitempty"`
}

// Mongo implements Store on the books, authors and users collections of a
// MongoDB database. Ids are ObjectID hex strings.
type Mongo struct {
	client  *mongo.Client
	books   *mongo.Collection
	authors *mongo.Collection
	users   *mongo.Collection
}

func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	if database == "" {
		database = defaultMongoDatabase
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	m := &Mongo{
		client:  client,
		books:   db.Collection("books"),
		authors: db.Collection("authors"),
		users:   db.Collection("users"),
	}

	_, err = m.users.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create users index: %w", err)
	}
	return m, nil
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *Mongo) CountBooks(ctx context.Context) (int, error) {
	n, err := m.books.CountDocuments(ctx, bson.M{})
	return int(n), err
}

func (m *Mongo) ListBooks(ctx context.Context, f BookFilter) ([]models.Book, error) {
	filter := bson.M{}
	if f.AuthorName != nil {
		ids, err := m.authorIDsNamed(ctx, *f.AuthorName)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []models.Book{}, nil
		}
		filter["author"] = bson.M{"$in": ids}
	}
	if f.Genre != nil {
		filter["genres"] = *f.Genre
	}
	return m.findBooks(ctx, filter)
}

func (m *Mongo) BookByTitle(ctx context.Context, title string) (models.Book, error) {
	var doc bookDoc
	err := m.books.FindOne(ctx, bson.M{"title": title}, options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})).Decode(&doc)
	if err != nil {
		return models.Book{}, mongoNotFound(err)
	}
	return doc.model(), nil
}

func (m *Mongo) BooksByAuthor(ctx context.Context, authorID string) ([]models.Book, error) {
	oid, err := primitive.ObjectIDFromHex(authorID)
	if err != nil {
		return []models.Book{}, nil
	}
	return m.findBooks(ctx, bson.M{"author": oid})
}

func (m *Mongo) CountBooksByAuthor(ctx context.Context, authorID string) (int, error) {
	oid, err := primitive.ObjectIDFromHex(authorID)
	if err != nil {
		return 0, nil
	}
	n, err := m.books.CountDocuments(ctx, bson.M{"author": oid})
	return int(n), err
}

func (m *Mongo) InsertBook(ctx context.Context, b *models.Book) error {
	if err := b.Validate(); err != nil {
		return err
	}
	authorID, err := primitive.ObjectIDFromHex(b.AuthorID)
	if err != nil {
		return fmt.Errorf("%w: author id %q", models.ErrInvalid, b.AuthorID)
	}
	n, err := m.authors.CountDocuments(ctx, bson.M{"_id": authorID})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: author %s does not exist", models.ErrInvalid, b.AuthorID)
	}
	genres := b.Genres
	if genres == nil {
		genres = []string{}
	}
	doc := bookDoc{
		ID:        primitive.NewObjectID(),
		Title:     b.Title,
		Published: b.Published,
		Genres:    genres,
		Author:    authorID,
	}
	if _, err := m.books.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	*b = doc.model()
	return nil
}

func (m *Mongo) CountAuthors(ctx context.Context) (int, error) {
	n, err := m.authors.CountDocuments(ctx, bson.M{})
	return int(n), err
}

func (m *Mongo) ListAuthors(ctx context.Context) ([]models.Author, error) {
	cur, err := m.authors.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []authorDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	res := make([]models.Author, 0, len(docs))
	for _, d := range docs {
		res = append(res, d.model())
	}
	return res, nil
}

func (m *Mongo) AuthorByID(ctx context.Context, id string) (models.Author, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.Author{}, ErrNotFound
	}
	return m.findAuthor(ctx, bson.M{"_id": oid})
}

func (m *Mongo) AuthorByName(ctx context.Context, name string) (models.Author, error) {
	return m.findAuthor(ctx, bson.M{"name": name})
}

func (m *Mongo) InsertAuthor(ctx context.Context, a *models.Author) error {
	if err := a.Validate(); err != nil {
		return err
	}
	doc := authorDoc{ID: primitive.NewObjectID(), Name: a.Name, Born: a.Born}
	if _, err := m.authors.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert author: %w", err)
	}
	*a = doc.model()
	return nil
}

func (m *Mongo) UpdateAuthor(ctx context.Context, a models.Author) error {
	if err := a.Validate(); err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(a.ID)
	if err != nil {
		return ErrNotFound
	}
	res, err := m.authors.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"name": a.Name, "born": a.Born}})
	if err != nil {
		return fmt.Errorf("update author: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) InsertUser(ctx context.Context, u *models.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	doc := userDoc{
		ID:            primitive.NewObjectID(),
		Username:      u.Username,
		FavoriteGenre: u.FavoriteGenre,
		PasswordHash:  u.PasswordHash,
	}
	if _, err := m.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: username %q taken", ErrDuplicate, u.Username)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	*u = doc.model()
	return nil
}

func (m *Mongo) UserByID(ctx context.Context, id string) (models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.User{}, ErrNotFound
	}
	return m.findUser(ctx, bson.M{"_id": oid})
}

func (m *Mongo) UserByUsername(ctx context.Context, username string) (models.User, error) {
	return m.findUser(ctx, bson.M{"username": username})
}

func (m *Mongo) findBooks(ctx context.Context, filter bson.M) ([]models.Book, error) {
	cur, err := m.books.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []bookDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	res := make([]models.Book, 0, len(docs))
	for _, d := range docs {
		res = append(res, d.model())
	}
	return res, nil
}

func (m *Mongo) authorIDsNamed(ctx context.Context, name string) ([]primitive.ObjectID, error) {
	cur, err := m.authors.Find(ctx, bson.M{"name": name}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var docs []authorDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (m *Mongo) findAuthor(ctx context.Context, filter bson.M) (models.Author, error) {
	var doc authorDoc
	err := m.authors.FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})).Decode(&doc)
	if err != nil {
		return models.Author{}, mongoNotFound(err)
	}
	return doc.model(), nil
}

func (m *Mongo) findUser(ctx context.Context, filter bson.M) (models.User, error) {
	var doc userDoc
	if err := m.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		return models.User{}, mongoNotFound(err)
	}
	return doc.model(), nil
}

func (d bookDoc) model() models.Book {
	genres := d.Genres
	if genres == nil {
		genres = []string{}
	}
	return models.Book{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Published: d.Published,
		Genres:    genres,
		AuthorID:  d.Author.Hex(),
	}
}

func (d authorDoc) model() models.Author {
	return models.Author{ID: d.ID.Hex(), Name: d.Name, Born: d.Born}
}

func (d userDoc) model() models.User {
	return models.User{
		ID:            d.ID.Hex(),
		Username:      d.Username,
		FavoriteGenre: d.FavoriteGenre,
		PasswordHash:  d.PasswordHash,
	}
}

func mongoNotFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
