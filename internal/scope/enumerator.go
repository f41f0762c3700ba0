// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package scope

import (
	"context"
	"net/url"

	"github.com/netSkope/console-export-tool/internal/console"
	"github.com/netSkope/console-export-tool/internal/record"
	"go.uber.org/zap"
)

// Listings holds the endpoints used to discover scope ids.
type Listings struct {
	Accounts console.Endpoint
	Sites    console.Endpoint
	Groups   console.Endpoint
}

// DefaultListings returns the console listings for API version apiVersion.
func DefaultListings(apiVersion string) Listings {
	base := "/web/api/" + apiVersion + "/"
	static := url.Values{"countOnly": {"false"}, "tenant": {"true"}}
	return Listings{
		Accounts: console.Endpoint{Name: "accounts", Path: base + "accounts", Static: static},
		Sites:    console.Endpoint{Name: "sites", Path: base + "sites", Static: static, DataKey: "sites"},
		Groups:   console.Endpoint{Name: "groups", Path: base + "groups", Static: static},
	}
}

// Enumerator resolves the phases a scoped report runs over.
type Enumerator struct {
	fetcher  console.PageFetcher
	listings Listings
	logger   *zap.Logger
}

// NewEnumerator creates an Enumerator using fetcher for the listing calls.
func NewEnumerator(fetcher console.PageFetcher, listings Listings, logger *zap.Logger) *Enumerator {
	return &Enumerator{fetcher: fetcher, listings: listings, logger: logger}
}

// Enumerate returns the phases permitted for access, in Order. The account
// listing is skipped entirely for site-level users; sites and groups are
// always listed. A listing that aborts keeps the scopes received before the
// failure. Phases with no scopes are omitted.
func (e *Enumerator) Enumerate(ctx context.Context, access AccessLevel) []Phase {
	var phases []Phase

	for _, dim := range access.Dimensions() {
		var scopes []Scope
		switch dim {
		case Global:
			scopes = []Scope{GlobalScope}
		case Account:
			scopes = e.list(ctx, Account, e.listings.Accounts)
		case Site:
			scopes = e.list(ctx, Site, e.listings.Sites)
		case Group:
			scopes = e.list(ctx, Group, e.listings.Groups)
		}

		e.logger.Info("Resolved scope phase",
			zap.String("dimension", dim.String()),
			zap.Int("scopes", len(scopes)))
		if len(scopes) > 0 {
			phases = append(phases, Phase{Dimension: dim, Scopes: scopes})
		}
	}

	return phases
}

func (e *Enumerator) list(ctx context.Context, dim Dimension, ep console.Endpoint) []Scope {
	var scopes []Scope
	seen := make(map[string]struct{})

	out := e.fetcher.Fetch(ctx, ep, nil, func(records []record.Record) error {
		for _, rec := range records {
			id, ok := rec.Get("id")
			if !ok || id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			scopes = append(scopes, Scope{Dimension: dim, ID: id, Name: rec.GetOr("name", "")})
		}
		return nil
	})

	if out.Status == console.Aborted {
		e.logger.Warn("Scope listing aborted, continuing with partial ids",
			zap.String("dimension", dim.String()),
			zap.Int("scopes", len(scopes)),
			zap.Error(out.Err))
	}
	return scopes
}
