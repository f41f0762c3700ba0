// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package scope

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/netSkope/console-export-tool/internal/console"
	"github.com/netSkope/console-export-tool/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeFetcher serves canned pages per endpoint name.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string][][]record.Record
	fail  map[string]bool
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, ep console.Endpoint, _ url.Values, onPage console.PageFunc) console.Outcome {
	f.mu.Lock()
	f.calls = append(f.calls, ep.Name)
	pages := f.pages[ep.Name]
	fail := f.fail[ep.Name]
	f.mu.Unlock()

	var out console.Outcome
	for _, page := range pages {
		out.Pages++
		_ = onPage(page)
	}
	if fail {
		out.Status = console.Aborted
		out.Err = &console.HTTPStatusError{StatusCode: 500}
		return out
	}
	out.Status = console.Completed
	return out
}

func item(id, name string) record.Record {
	return record.New(record.Field{Name: "id", Value: id}, record.Field{Name: "name", Value: name})
}

func newFake() *fakeFetcher {
	return &fakeFetcher{
		pages: map[string][][]record.Record{
			"accounts": {{item("a1", "Acme")}},
			"sites":    {{item("s1", "HQ"), item("s2", "Lab")}, {item("s1", "HQ dup")}},
			"groups":   {{item("g1", "Default")}},
		},
		fail: map[string]bool{},
	}
}

func TestEnumerate_AccessGating(t *testing.T) {
	tests := []struct {
		access AccessLevel
		want   []Dimension
		calls  []string
	}{
		{AccessGlobal, []Dimension{Global, Account, Site, Group}, []string{"accounts", "sites", "groups"}},
		{AccessAccount, []Dimension{Account, Site, Group}, []string{"accounts", "sites", "groups"}},
		{ParseAccessLevel("Tenant"), []Dimension{Account, Site, Group}, []string{"accounts", "sites", "groups"}},
		{AccessSite, []Dimension{Site, Group}, []string{"sites", "groups"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.access), func(t *testing.T) {
			fake := newFake()
			e := NewEnumerator(fake, DefaultListings("v2.1"), zaptest.NewLogger(t))

			phases := e.Enumerate(context.Background(), tt.access)

			var dims []Dimension
			for _, p := range phases {
				dims = append(dims, p.Dimension)
			}
			assert.Equal(t, tt.want, dims)
			assert.Equal(t, tt.calls, fake.calls)
		})
	}
}

func TestEnumerate_GlobalPhaseIsSingleIdlessScope(t *testing.T) {
	e := NewEnumerator(newFake(), DefaultListings("v2.1"), zaptest.NewLogger(t))

	phases := e.Enumerate(context.Background(), AccessGlobal)
	require.NotEmpty(t, phases)
	require.Equal(t, Global, phases[0].Dimension)
	require.Len(t, phases[0].Scopes, 1)
	assert.Equal(t, "", phases[0].Scopes[0].ID)
	assert.Empty(t, phases[0].Scopes[0].Params())
}

func TestEnumerate_DeduplicatesAndKeepsOrder(t *testing.T) {
	e := NewEnumerator(newFake(), DefaultListings("v2.1"), zaptest.NewLogger(t))

	phases := e.Enumerate(context.Background(), AccessSite)
	require.Len(t, phases, 2)
	assert.Equal(t, []Scope{
		{Dimension: Site, ID: "s1", Name: "HQ"},
		{Dimension: Site, ID: "s2", Name: "Lab"},
	}, phases[0].Scopes)
	assert.Equal(t, 3, Len(phases))
}

func TestEnumerate_AbortedListingKeepsPartialIDs(t *testing.T) {
	fake := newFake()
	fake.fail["sites"] = true
	fake.pages["groups"] = nil
	e := NewEnumerator(fake, DefaultListings("v2.1"), zaptest.NewLogger(t))

	phases := e.Enumerate(context.Background(), AccessSite)

	require.Len(t, phases, 1, "empty group phase is omitted")
	assert.Equal(t, Site, phases[0].Dimension)
	assert.Len(t, phases[0].Scopes, 2)
}

func TestScope_LabelAndParams(t *testing.T) {
	tests := []struct {
		scope  Scope
		label  string
		key    string
		params url.Values
	}{
		{GlobalScope, "Global", "global", url.Values{}},
		{Scope{Dimension: Account, ID: "1", Name: "Acme"}, "Account|Acme | 1", "account:1", url.Values{"accountIds": {"1"}}},
		{Scope{Dimension: Site, ID: "A"}, "Site|A", "site:A", url.Values{"siteIds": {"A"}}},
		{Scope{Dimension: Group, ID: "9", Name: "Default"}, "Group|Default | 9", "group:9", url.Values{"groupIds": {"9"}}},
		{Scope{Dimension: Query, ID: "q-1"}, "Query|q-1", "query:q-1", url.Values{"queryId": {"q-1"}}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.label, tt.scope.Label())
		assert.Equal(t, tt.key, tt.scope.Key())
		assert.Equal(t, tt.params, tt.scope.Params())
	}
}

func TestAccessLevel_Allows(t *testing.T) {
	assert.False(t, AccessSite.Allows(Global))
	assert.False(t, AccessSite.Allows(Account))
	assert.True(t, AccessSite.Allows(Group))
	assert.False(t, AccessAccount.Allows(Global))
	assert.True(t, AccessGlobal.Allows(Global))
}

func TestDefaultListings(t *testing.T) {
	l := DefaultListings("v2.1")
	assert.Equal(t, "/web/api/v2.1/sites", l.Sites.Path)
	assert.Equal(t, "sites", l.Sites.DataKey)
	assert.Empty(t, l.Accounts.DataKey)
	assert.Equal(t, "true", l.Groups.Static.Get("tenant"))
}
