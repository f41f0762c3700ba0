// Copyright (c) 2024 Netskope, Inc. All rights reserved.

// Package scope models the dimensions a report is repeated over and resolves
// the scope identifiers reachable by the authenticated user.
package scope

import (
	"fmt"
	"net/url"
	"strings"
)

// Dimension is an organizational axis a report is fanned out over.
type Dimension int

const (
	Global Dimension = iota
	Account
	Site
	Group
	// Query keys batches by a report-level identifier such as a Deep
	// Visibility query id. It is never produced by the Enumerator.
	Query
)

// Order is the fixed processing order of access-controlled dimensions.
var Order = []Dimension{Global, Account, Site, Group}

func (d Dimension) String() string {
	switch d {
	case Global:
		return "Global"
	case Account:
		return "Account"
	case Site:
		return "Site"
	case Group:
		return "Group"
	case Query:
		return "Query"
	default:
		return fmt.Sprintf("Dimension(%d)", int(d))
	}
}

// ParamName is the request parameter that filters a listing to one scope id.
func (d Dimension) ParamName() string {
	switch d {
	case Account:
		return "accountIds"
	case Site:
		return "siteIds"
	case Group:
		return "groupIds"
	case Query:
		return "queryId"
	default:
		return ""
	}
}

// Scope is one key of a fan-out phase. The global scope has no id.
type Scope struct {
	Dimension Dimension
	ID        string
	Name      string
}

// GlobalScope is the single id-less scope of the global phase.
var GlobalScope = Scope{Dimension: Global}

// Label is the display value injected into the Scope column.
func (s Scope) Label() string {
	if s.Dimension == Global {
		return "Global"
	}
	if s.Name == "" {
		return s.Dimension.String() + "|" + s.ID
	}
	return fmt.Sprintf("%s|%s | %s", s.Dimension, s.Name, s.ID)
}

// Key identifies the scope in logs, e.g. "site:42".
func (s Scope) Key() string {
	if s.Dimension == Global {
		return "global"
	}
	return strings.ToLower(s.Dimension.String()) + ":" + s.ID
}

// Params returns the request parameters that restrict a call to this scope.
func (s Scope) Params() url.Values {
	p := make(url.Values)
	if name := s.Dimension.ParamName(); name != "" && s.ID != "" {
		p.Set(name, s.ID)
	}
	return p
}

// Phase is an ordered list of scopes sharing one dimension.
type Phase struct {
	Dimension Dimension
	Scopes    []Scope
}

// Len counts scopes across phases.
func Len(phases []Phase) int {
	n := 0
	for _, p := range phases {
		n += len(p.Scopes)
	}
	return n
}

// AccessLevel is the user's access scope as reported by the console.
type AccessLevel string

const (
	AccessGlobal  AccessLevel = "global"
	AccessAccount AccessLevel = "account"
	AccessSite    AccessLevel = "site"
)

// ParseAccessLevel normalizes the console's scope string.
func ParseAccessLevel(s string) AccessLevel {
	return AccessLevel(strings.ToLower(strings.TrimSpace(s)))
}

// Dimensions returns the dimensions this access level may run, in Order.
// Anything other than "site" is treated like account access; only "global"
// adds the global phase.
func (a AccessLevel) Dimensions() []Dimension {
	switch a {
	case AccessGlobal:
		return []Dimension{Global, Account, Site, Group}
	case AccessSite:
		return []Dimension{Site, Group}
	default:
		return []Dimension{Account, Site, Group}
	}
}

// Allows reports whether d may run at this access level.
func (a AccessLevel) Allows(d Dimension) bool {
	for _, allowed := range a.Dimensions() {
		if allowed == d {
			return true
		}
	}
	return false
}
