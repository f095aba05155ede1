package poi

import (
	"fmt"
	"strings"

	"yaoundeconnect.org/internal/roles"
)

// ModerationAction names a requested transition.
type ModerationAction string

const (
	ActionApprove   ModerationAction = "approve"
	ActionReject    ModerationAction = "reject"
	ActionReapprove ModerationAction = "reapprove"
)

// minReasonLength is the hard gate on rejection reasons.
const minReasonLength = 10

// CheckModerationInput validates everything that can be validated before a
// transaction is opened: the actor's role and the shape of the input. A
// failure here guarantees no persistence work has started.
func CheckModerationInput(resolver roles.Resolver, actor roles.Actor, action ModerationAction, reason string) error {
	if !resolver.AtLeast(actor.Role, roles.Moderateur) {
		return fmt.Errorf("%w: role %s may not moderate", ErrAuthorization, actor.Role)
	}
	if action == ActionReject {
		if len(strings.TrimSpace(reason)) < minReasonLength {
			return fmt.Errorf("%w: rejection reason must be at least %d characters", ErrValidation, minReasonLength)
		}
	}
	return nil
}

// NextStatus decides the transition for action given the current state,
// which the caller must have re-read inside its transaction. Reapprove is
// the approve edge restricted to rejected.
func NextStatus(current Status, action ModerationAction) (Status, error) {
	switch action {
	case ActionApprove:
		switch current {
		case StatusPending, StatusRejected:
			return StatusApproved, nil
		case StatusApproved:
			return "", fmt.Errorf("%w: already approved", ErrAlreadyInState)
		}
	case ActionReject:
		switch current {
		case StatusPending, StatusApproved:
			return StatusRejected, nil
		case StatusRejected:
			return "", fmt.Errorf("%w: already rejected", ErrAlreadyInState)
		}
	case ActionReapprove:
		if current == StatusRejected {
			return StatusApproved, nil
		}
		return "", fmt.Errorf("%w: only rejected POIs may be reapproved", ErrAlreadyInState)
	}
	return "", fmt.Errorf("%w: unknown transition %s from %s", ErrValidation, action, current)
}

// ValidateCreate checks a submission before any persistence write.
func ValidateCreate(in CreateInput) error {
	if len(strings.TrimSpace(in.Name)) < 3 {
		return fmt.Errorf("%w: name must be at least 3 characters", ErrValidation)
	}
	if strings.TrimSpace(in.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	if in.Latitude < -90 || in.Latitude > 90 {
		return fmt.Errorf("%w: latitude out of range", ErrValidation)
	}
	if in.Longitude < -180 || in.Longitude > 180 {
		return fmt.Errorf("%w: longitude out of range", ErrValidation)
	}
	return nil
}

// ValidateUpdate checks the provided field changes.
func ValidateUpdate(upd Update) error {
	if upd.Name != nil && len(strings.TrimSpace(*upd.Name)) < 3 {
		return fmt.Errorf("%w: name must be at least 3 characters", ErrValidation)
	}
	if upd.Category != nil && strings.TrimSpace(*upd.Category) == "" {
		return fmt.Errorf("%w: category must not be empty", ErrValidation)
	}
	if upd.Latitude != nil && (*upd.Latitude < -90 || *upd.Latitude > 90) {
		return fmt.Errorf("%w: latitude out of range", ErrValidation)
	}
	if upd.Longitude != nil && (*upd.Longitude < -180 || *upd.Longitude > 180) {
		return fmt.Errorf("%w: longitude out of range", ErrValidation)
	}
	return nil
}

// CanEdit reports whether actor may update or delete the record outside the
// moderation flow: the creator or anyone at moderator level and above.
func CanEdit(resolver roles.Resolver, actor roles.Actor, p POI) bool {
	if actor.ID != "" && actor.ID == p.CreatedBy {
		return true
	}
	return resolver.AtLeast(actor.Role, roles.Moderateur)
}
