// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package community

// Roles names the account roles the backend acts on.
//
// Community documents mix capitalizations of the same role, so matching is
// case-insensitive unless CaseSensitive is set.
type Roles struct {
	Security      string `help:"role name of security staff" default:"Security"`
	Resident      string `help:"role name of residents" default:"Resident"`
	Admin         string `help:"role name of community administrators" default:"Admin"`
	CaseSensitive bool   `help:"match role names case-sensitively" default:"false"`
}

// SecurityMatcher matches security staff.
func (roles Roles) SecurityMatcher() RoleMatcher {
	return RoleMatcher{Role: roles.Security, CaseSensitive: roles.CaseSensitive}
}

// ResidentMatcher matches residents.
func (roles Roles) ResidentMatcher() RoleMatcher {
	return RoleMatcher{Role: roles.Resident, CaseSensitive: roles.CaseSensitive}
}

// AdminMatcher matches administrators.
func (roles Roles) AdminMatcher() RoleMatcher {
	return RoleMatcher{Role: roles.Admin, CaseSensitive: roles.CaseSensitive}
}

// DefaultRoles returns the role names used when nothing is configured.
func DefaultRoles() Roles {
	return Roles{
		Security: "Security",
		Resident: "Resident",
		Admin:    "Admin",
	}
}

// Validate checks that every role has a name.
func (roles Roles) Validate() error {
	switch {
	case roles.Security == "":
		return ErrInvalidArgument.New("security role name is required")
	case roles.Resident == "":
		return ErrInvalidArgument.New("resident role name is required")
	case roles.Admin == "":
		return ErrInvalidArgument.New("admin role name is required")
	}
	return nil
}

// Require returns ErrUnauthorized for an incomplete session and ErrForbidden
// unless the session role matches one of matchers.
func Require(session Session, matchers ...RoleMatcher) error {
	if session.CommunityID == "" || session.UserID == "" {
		return ErrUnauthorized.New("session is missing community or user")
	}
	if len(matchers) == 0 {
		return nil
	}
	for _, matcher := range matchers {
		if matcher.Match(session.Role) {
			return nil
		}
	}
	return ErrForbidden.New("role %q may not perform this operation", session.Role)
}
