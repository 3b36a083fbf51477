package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/sgea-api/internal/models"
	appErrors "github.com/noah-isme/sgea-api/pkg/errors"
)

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type eventReader interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
}

// authorizer performs the per-call role and ownership checks shared by the
// ledger, the issuer and the catalog.
type authorizer struct {
	users  userReader
	events eventReader
}

// actor loads the acting user and checks that it carries one of roles.
func (a authorizer) actor(ctx context.Context, userID string, roles ...models.UserRole) (*models.User, error) {
	user, err := a.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	if err := requireRole(user, roles...); err != nil {
		return nil, err
	}
	return user, nil
}

// event loads an event by id.
func (a authorizer) event(ctx context.Context, eventID string) (*models.Event, error) {
	event, err := a.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Internal(err, "failed to load event")
	}
	return event, nil
}

// ownedEvent loads an event and checks that organizerID owns it.
func (a authorizer) ownedEvent(ctx context.Context, organizerID, eventID string) (*models.Event, error) {
	event, err := a.event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(event, organizerID); err != nil {
		return nil, err
	}
	return event, nil
}

func requireRole(user *models.User, roles ...models.UserRole) error {
	if len(roles) == 0 {
		return nil
	}
	for _, role := range roles {
		if user.Role == role {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrRoleNotPermitted, "role "+user.Role.Label()+" not permitted")
}

func requireOwner(event *models.Event, userID string) error {
	if !event.OwnedBy(userID) {
		return appErrors.Clone(appErrors.ErrNotOwner, "only the event organizer can perform this action")
	}
	return nil
}
