// internal/app/features/groups/authz.go
package groups

import (
	"context"
	"errors"

	"github.com/blokhub/blokhub/internal/app/system/apperr"
	"github.com/blokhub/blokhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// requireAdmin returns ErrNotAuthorized unless userID holds the admin
// role in the group. Non-members are not authorized rather than
// not-found; the group's existence is not leaked through this check.
func (h *Handler) requireAdmin(ctx context.Context, groupID, userID primitive.ObjectID) error {
	role, err := h.Memberships.Role(ctx, groupID, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.ErrNotAuthorized
	}
	if err != nil {
		return err
	}
	if role != models.RoleAdmin {
		return apperr.ErrNotAuthorized
	}
	return nil
}
