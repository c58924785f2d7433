// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"time"

	"github.com/blokhub/blokhub/internal/app/system/apperr"
	"github.com/blokhub/blokhub/internal/app/system/htmlsanitize"
	"github.com/blokhub/blokhub/internal/app/system/normalize"
	"github.com/blokhub/blokhub/internal/app/system/txn"
	"github.com/blokhub/blokhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var errEmptyName = errors.New("group name is required")

type Store struct {
	c           *mongo.Collection
	memberships *mongo.Collection
	users       *mongo.Collection
	db          *mongo.Database
	log         *zap.Logger
}

func New(db *mongo.Database, log *zap.Logger) *Store {
	return &Store{
		c:           db.Collection("groups"),
		memberships: db.Collection("group_memberships"),
		users:       db.Collection("users"),
		db:          db,
		log:         log,
	}
}

// GetByID loads a group document.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Group{}, apperr.ErrNotFound
		}
		return models.Group{}, apperr.Transient(err)
	}
	return g, nil
}

// Create inserts the group and the creator's founding admin membership as
// one unit: "create implies founding membership". Both writes run under a
// transaction where the deployment supports one, so a group can never be
// observed without its admin.
func (s *Store) Create(ctx context.Context, name, description string, creator primitive.ObjectID) (models.Group, error) {
	name = normalize.Name(name)
	if name == "" {
		return models.Group{}, errEmptyName
	}

	// Creator must exist.
	if err := s.users.FindOne(ctx, bson.M{"_id": creator}).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Group{}, apperr.ErrNotFound
		}
		return models.Group{}, apperr.Transient(err)
	}

	now := time.Now().UTC()
	g := models.Group{
		ID:          primitive.NewObjectID(),
		Name:        name,
		NameCI:      text.Fold(name),
		Description: htmlsanitize.Sanitize(description),
		CreatedBy:   creator,
		CreatedAt:   now,
	}

	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if _, err := s.c.InsertOne(ctx, g); err != nil {
			return err
		}
		_, err := s.memberships.InsertOne(ctx, models.GroupMembership{
			ID:       primitive.NewObjectID(),
			GroupID:  g.ID,
			UserID:   creator,
			Role:     models.RoleAdmin,
			JoinedAt: now,
		})
		return err
	})
	if err != nil {
		return models.Group{}, apperr.Transient(err)
	}
	return g, nil
}

// GroupDetail is the read model for a single group: the group plus its
// creator's current snapshot. Creator is nil when that user has been
// deleted since.
type GroupDetail struct {
	Group   models.Group `json:"group"`
	Creator *models.User `json:"creator,omitempty"`
}

// GetDetail resolves a group together with its creator.
func (s *Store) GetDetail(ctx context.Context, id primitive.ObjectID) (GroupDetail, error) {
	g, err := s.GetByID(ctx, id)
	if err != nil {
		return GroupDetail{}, err
	}
	detail := GroupDetail{Group: g}

	var creator models.User
	err = s.users.FindOne(ctx, bson.M{"_id": g.CreatedBy}).Decode(&creator)
	switch {
	case err == nil:
		detail.Creator = &creator
	case errors.Is(err, mongo.ErrNoDocuments):
		// dangling creator reference; the group itself is still valid
	default:
		return GroupDetail{}, apperr.Transient(err)
	}
	return detail, nil
}

// List returns all groups.
func (s *Store) List(ctx context.Context) ([]models.Group, error) {
	cur, err := s.c.Find(ctx, bson.M{})
	if err != nil {
		return nil, apperr.Transient(err)
	}
	defer cur.Close(ctx)

	var groups []models.Group
	if err := cur.All(ctx, &groups); err != nil {
		return nil, apperr.Transient(err)
	}
	return groups, nil
}
