// Package service contains the business logic layer of the application.
//
// THE THREE LAYERS:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services accept primitives and return domain values or apperror values.
// They never see HTTP types, so the scheduler in internal/worker calls the
// same SyncService the handlers do.
//
// Every service takes its repositories as interfaces. main.go hands in the
// one *sqlite.DB for all of them; tests hand in the in-memory store from
// mock_test.go.
package service

import (
	"context"
	"math"
	"strings"

	"github.com/sakif/steam-arena/internal/aggregate"
	"github.com/sakif/steam-arena/internal/apperror"
	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/repository"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Aggregator is the read side the services need from the aggregation core.
// *aggregate.Engine implements it.
type Aggregator interface {
	Intersect(ctx context.Context, src aggregate.MemberSetProvider) (*aggregate.Intersection, error)
	Compare(ctx context.Context, src aggregate.MemberSetProvider) (*aggregate.Comparison, error)
	CompareGroup(ctx context.Context, groupID string) (*model.Group, *aggregate.Comparison, error)
	UserStats(ctx context.Context, userID string) (*model.UserStats, error)
	OwnersOf(ctx context.Context, gameID string) ([]model.GameOwner, error)
}

var _ Aggregator = (*aggregate.Engine)(nil)

// listOptions clamps pagination to 1..MaxListLimit and a non-negative offset.
func listOptions(limit, offset int) repository.ListOptions {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return repository.ListOptions{Limit: limit, Offset: offset}
}

func requireID(field, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", apperror.ValidationFailed(field, field+" is required")
	}
	return id, nil
}

// round rounds v to the given number of decimal places.
func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
