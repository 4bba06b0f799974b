/**
 * @description
 * Moderation state machine for listings. Every status change goes through Transition,
 * which consults an explicit table; anything not in the table is refused.
 */
package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
)

// Action is an event that can move a listing between moderation states.
type Action string

const (
	ActionApprove      Action = "approve"
	ActionReject       Action = "reject"
	ActionDeactivate   Action = "deactivate"
	ActionCosmeticEdit Action = "cosmetic_edit"
	ActionMaterialEdit Action = "material_edit"
)

// EditKind classifies a host edit against the last approved snapshot.
type EditKind string

const (
	EditCosmetic EditKind = "cosmetic"
	EditMaterial EditKind = "material"
)

var transitions = map[domain.ApprovalStatus]map[Action]domain.ApprovalStatus{
	domain.StatusPending: {
		ActionApprove:      domain.StatusApproved,
		ActionReject:       domain.StatusRejected,
		ActionCosmeticEdit: domain.StatusPending,
		ActionMaterialEdit: domain.StatusPending,
	},
	domain.StatusApproved: {
		ActionDeactivate:   domain.StatusDeactivated,
		ActionCosmeticEdit: domain.StatusApproved,
		ActionMaterialEdit: domain.StatusPending,
	},
	domain.StatusRejected: {
		ActionCosmeticEdit: domain.StatusPending,
		ActionMaterialEdit: domain.StatusPending,
	},
	// deactivated has no outgoing transitions.
	domain.StatusDeactivated: {},
}

// Transition returns the state reached from `from` on action, or ErrIllegalTransition.
func Transition(from domain.ApprovalStatus, action Action) (domain.ApprovalStatus, error) {
	next, ok := transitions[from][action]
	if !ok {
		return from, fmt.Errorf("%w: cannot %s a %s listing", domain.ErrIllegalTransition, action, from)
	}
	return next, nil
}

// ClassifyEdit decides whether the proposed details and prices are a cosmetic edit of the
// approved snapshot. A listing that was never approved has no snapshot and every edit is material.
func ClassifyEdit(snapshot *domain.ApprovedSnapshot, details domain.VehicleDetails, prices domain.Prices) EditKind {
	if snapshot == nil {
		return EditMaterial
	}
	if snapshot.Year != details.Year ||
		snapshot.Make != details.Make ||
		snapshot.Model != details.Model ||
		snapshot.City != details.City ||
		snapshot.State != details.State ||
		snapshot.TitleStatus != details.TitleStatus ||
		!sameText(snapshot.Description, details.Description) {
		return EditMaterial
	}
	if !sameImageSet(snapshot.Images, details.Images) {
		return EditMaterial
	}
	if priceIncreased(snapshot.Prices, prices) {
		return EditMaterial
	}
	return EditCosmetic
}

// ApplyEdit runs a host edit through the state machine and the price tracker.
// Only a cosmetic edit of an approved listing keeps it approved; everything else
// goes back to pending with its discount history cleared.
func ApplyEdit(current domain.Listing, details domain.VehicleDetails, prices domain.Prices) (domain.Listing, EditKind, error) {
	kind := ClassifyEdit(current.ApprovedSnapshot, details, prices)
	action := ActionMaterialEdit
	if kind == EditCosmetic {
		action = ActionCosmeticEdit
	}

	next, err := Transition(current.ApprovalStatus, action)
	if err != nil {
		return current, kind, err
	}

	updated := current
	updated.VehicleDetails = details
	updated.Images = append([]string(nil), details.Images...)
	updated = ApplyPriceUpdate(updated, approvedPrices(current.ApprovedSnapshot), prices, next != domain.StatusApproved)
	updated.ApprovalStatus = next
	if next != domain.StatusRejected {
		updated.RejectionReason = nil
	}
	return updated, kind, nil
}

// Moderate applies a moderator action. Reject and deactivate require a non-empty reason.
func Moderate(current domain.Listing, action Action, reason string) (domain.Listing, error) {
	reason = strings.TrimSpace(reason)
	if (action == ActionReject || action == ActionDeactivate) && reason == "" {
		return current, domain.ErrMissingModerationText
	}

	next, err := Transition(current.ApprovalStatus, action)
	if err != nil {
		return current, err
	}

	updated := current
	updated.ApprovalStatus = next
	updated.RejectionReason = nil
	updated.DeactivationReason = nil
	switch action {
	case ActionApprove:
		updated.ApprovedSnapshot = updated.Snapshot()
	case ActionReject:
		updated.RejectionReason = &reason
	case ActionDeactivate:
		updated.DeactivationReason = &reason
	}
	return updated, nil
}

// CheckModerationState verifies the reason columns agree with the status before a write.
func CheckModerationState(l domain.Listing) error {
	if !l.ApprovalStatus.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrIllegalTransition, l.ApprovalStatus)
	}
	if (l.ApprovalStatus == domain.StatusPending || l.ApprovalStatus == domain.StatusRejected) && !l.OriginalPrices.IsEmpty() {
		return fmt.Errorf("%w: %s listing carries original prices", domain.ErrIllegalTransition, l.ApprovalStatus)
	}
	switch l.ApprovalStatus {
	case domain.StatusRejected:
		if isBlank(l.RejectionReason) {
			return domain.ErrMissingModerationText
		}
		if l.DeactivationReason != nil {
			return fmt.Errorf("%w: rejected listing carries a deactivation reason", domain.ErrIllegalTransition)
		}
	case domain.StatusDeactivated:
		if isBlank(l.DeactivationReason) {
			return domain.ErrMissingModerationText
		}
		if l.RejectionReason != nil {
			return fmt.Errorf("%w: deactivated listing carries a rejection reason", domain.ErrIllegalTransition)
		}
	default:
		if l.RejectionReason != nil || l.DeactivationReason != nil {
			return fmt.Errorf("%w: %s listing carries a moderation reason", domain.ErrIllegalTransition, l.ApprovalStatus)
		}
	}
	return nil
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func sameText(a, b *string) bool {
	return strings.TrimSpace(deref(a)) == strings.TrimSpace(deref(b))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func sameImageSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	left := append([]string(nil), a...)
	right := append([]string(nil), b...)
	sort.Strings(left)
	sort.Strings(right)
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	return true
}
