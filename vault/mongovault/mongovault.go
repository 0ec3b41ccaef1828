// Package mongovault keeps each user, with its session list embedded, as a
// single MongoDB document.
package mongovault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andrebq/lockbox/vault"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	Store struct {
		client *mongo.Client
		users  *mongo.Collection
		notes  *mongo.Collection
		now    func() time.Time
	}

	userDoc struct {
		ID           string    `bson:"_id"`
		Email        string    `bson:"email"`
		PasswordHash string    `bson:"password_hash"`
		Tokens       []string  `bson:"tokens"`
		CreatedAt    time.Time `bson:"created_at"`
	}

	noteDoc struct {
		ID        string    `bson:"_id"`
		Content   string    `bson:"content"`
		CreatedAt time.Time `bson:"created_at"`
	}
)

var _ vault.Store = (*Store)(nil)

// Open connects to uri and makes sure the email index exists in database.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to mongodb, cause %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("unable to ping mongodb, cause %w", err)
	}
	db := client.Database(database)
	s := &Store{
		client: client,
		users:  db.Collection("users"),
		notes:  db.Collection("notes"),
		now:    time.Now,
	}
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uidx_users_email"),
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("unable to create email index, cause %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Drop removes both collections. Tests use it to start from scratch.
func (s *Store) Drop(ctx context.Context) error {
	if err := s.notes.Drop(ctx); err != nil {
		return err
	}
	return s.users.Drop(ctx)
}

func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*vault.User, error) {
	doc := userDoc{
		ID:           uuid.NewString(),
		Email:        vault.NormalizeEmail(email),
		PasswordHash: passwordHash,
		Tokens:       []string{},
		CreatedAt:    s.now().UTC().Truncate(time.Millisecond),
	}
	_, err := s.users.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil, vault.DuplicateEmail{Email: doc.Email}
	} else if err != nil {
		return nil, vault.Fail("create user", err)
	}
	return doc.user(), nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*vault.User, error) {
	email = vault.NormalizeEmail(email)
	return s.findOne(ctx, bson.M{"email": email}, email)
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*vault.User, error) {
	return s.findOne(ctx, bson.M{"_id": id}, id)
}

func (s *Store) findOne(ctx context.Context, filter bson.M, key string) (*vault.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, vault.NotFound{Kind: "user", Key: key}
	} else if err != nil {
		return nil, vault.Fail("find user", err)
	}
	return doc.user(), nil
}

// SaveUser replaces the user document, session list included, in a single
// write.
func (s *Store) SaveUser(ctx context.Context, u *vault.User) error {
	update := bson.M{"$set": bson.M{
		"email":         vault.NormalizeEmail(u.Email),
		"password_hash": u.PasswordHash,
		"tokens":        append([]string{}, u.Sessions...),
	}}
	res, err := s.users.UpdateByID(ctx, u.ID, update)
	if mongo.IsDuplicateKeyError(err) {
		return vault.DuplicateEmail{Email: vault.NormalizeEmail(u.Email)}
	} else if err != nil {
		return vault.Fail("save user", err)
	}
	if res.MatchedCount == 0 {
		return vault.NotFound{Kind: "user", Key: u.ID}
	}
	return nil
}

func (s *Store) CreateNote(ctx context.Context, content string) (*vault.Note, error) {
	doc := noteDoc{
		ID:        uuid.NewString(),
		Content:   content,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.notes.InsertOne(ctx, doc); err != nil {
		return nil, vault.Fail("create note", err)
	}
	return &vault.Note{ID: doc.ID, Content: doc.Content, CreatedAt: doc.CreatedAt}, nil
}

func (s *Store) ListNotes(ctx context.Context) ([]vault.Note, error) {
	cur, err := s.notes.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, vault.Fail("list notes", err)
	}
	defer cur.Close(ctx)
	var out []vault.Note
	for cur.Next(ctx) {
		var doc noteDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, vault.Fail("decode note", err)
		}
		out = append(out, vault.Note{ID: doc.ID, Content: doc.Content, CreatedAt: doc.CreatedAt})
	}
	if err := cur.Err(); err != nil {
		return nil, vault.Fail("list notes", err)
	}
	return out, nil
}

func (d userDoc) user() *vault.User {
	return &vault.User{
		ID:           d.ID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Sessions:     append(vault.Sessions{}, d.Tokens...),
		CreatedAt:    d.CreatedAt,
	}
}
