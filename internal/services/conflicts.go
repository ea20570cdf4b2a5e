package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mwhite/petdose/internal/models"
)

// ConflictResult reports whether confirming an item now would land inside a
// sibling's spacing window. A conflict is advisory: it blocks the default
// path only, and the caller may force-confirm, so CanOverride is always true.
type ConflictResult struct {
	HasConflict         bool   `json:"hasConflict"`
	ConflictingItemName string `json:"conflictingItemName,omitempty"`
	RemainingMinutes    int    `json:"remainingMinutes,omitempty"`
	CanOverride         bool   `json:"canOverride"`
}

// CheckConflict inspects the candidate item's conflict group and each
// sibling's most recent confirmation at or before now. When several siblings
// are inside the window, the most recently confirmed one is reported since it
// imposes the longest remaining wait. Read-only; callers must re-evaluate at
// confirmation time because now advances.
func (service *DoseService) CheckConflict(ctx context.Context, instance models.DailyInstance, now time.Time) (ConflictResult, error) {
	item, err := service.itemRepo.FindByID(ctx, instance.ItemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ConflictResult{}, ErrItemNotFound
		}
		return ConflictResult{}, err
	}

	if item.ConflictGroupID == nil {
		return ConflictResult{CanOverride: true}, nil
	}

	group, err := service.groupRepo.FindByID(ctx, *item.ConflictGroupID)
	if err != nil {
		return ConflictResult{}, fmt.Errorf("loading conflict group: %w", err)
	}

	siblings, err := service.itemRepo.FindByConflictGroup(ctx, group.ID)
	if err != nil {
		return ConflictResult{}, err
	}

	spacing := time.Duration(group.SpacingMinutes) * time.Minute
	var nearest *models.ConfirmationHistory
	var nearestName string

	for _, sibling := range siblings {
		if sibling.ID == item.ID {
			continue
		}
		entry, err := service.historyRepo.FindLatestByItemBefore(ctx, sibling.ID, now)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return ConflictResult{}, err
		}
		if now.Sub(entry.ConfirmedAt) >= spacing {
			continue
		}
		if nearest == nil || entry.ConfirmedAt.After(nearest.ConfirmedAt) {
			e := entry
			nearest = &e
			nearestName = sibling.Name
		}
	}

	if nearest == nil {
		return ConflictResult{CanOverride: true}, nil
	}

	remaining := spacing - now.Sub(nearest.ConfirmedAt)
	return ConflictResult{
		HasConflict:         true,
		ConflictingItemName: nearestName,
		RemainingMinutes:    int(math.Ceil(remaining.Minutes())),
		CanOverride:         true,
	}, nil
}
