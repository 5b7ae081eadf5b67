// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package credential persists user identity: email, password hash, role,
account status and the role-specific profile (a customer row for customers,
a business row with its subscription flag for business owners).

It is the only place that knows how accounts are stored. The auth service
mutates accounts exclusively through [Store].

# Invariants

  - Emails are unique case-insensitively. Two concurrent creations with the
    same address yield exactly one success and one DUPLICATE_EMAIL.
  - Status follows PENDING → ACTIVE → {SUSPENDED, DELETED} and never goes
    back. [Status.CanTransitionTo] is the single source of truth.
  - Leaving PENDING is reserved for code verification; administrators only
    act on activated accounts ([Status.CanAdministerTo]).
*/
package credential

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/taibuivan/marketplace-auth/internal/platform/sec"
)

// # Account Status

// Status is the lifecycle state of an account.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusDeleted   Status = "DELETED"
)

// transitions lists the allowed next states for each status.
var transitions = map[Status][]Status{
	StatusPending: {StatusActive},
	StatusActive:  {StatusSuspended, StatusDeleted},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended, StatusDeleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanAdministerTo reports whether an administrator may move an account from
// s to next. PENDING accounts are activated only by their own code.
func (s Status) CanAdministerTo(next Status) bool {
	return s != StatusPending && s.CanTransitionTo(next)
}

// # Profile

// Gender is the optional self-declared gender of an account holder.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

// Valid reports whether g is a known gender. The empty value means unset.
func (g Gender) Valid() bool {
	switch g {
	case "", GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// # Domain Entities

// User is a registered account of the marketplace.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	FullName     string       `json:"full_name"`
	Phone        string       `json:"phone,omitempty"`
	Address      string       `json:"address,omitempty"`
	City         string       `json:"city,omitempty"`
	State        string       `json:"state,omitempty"`
	Country      string       `json:"country,omitempty"`
	Picture      string       `json:"picture,omitempty"`
	Gender       Gender       `json:"gender,omitempty"`
	Role         sec.UserRole `json:"role"`
	Status       Status       `json:"status"`
	LastLoginAt  *time.Time   `json:"last_login_at,omitempty"`

	// HaveSubscription is set for business owners only.
	HaveSubscription *bool `json:"have_subscription,omitempty"`

	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// IsActive reports whether the account may sign in.
func (user *User) IsActive() bool {
	return user.Status == StatusActive
}

// Profile carries the optional fields supplied at sign-up.
type Profile struct {
	FullName string
	Phone    string
	Address  string
	City     string
	State    string
	Country  string
	Picture  string
	Gender   Gender

	// HaveSubscription is accepted for business owners only.
	HaveSubscription *bool
}

// NewUser builds a PENDING account for role from the sign-up profile.
//
// Business owners always carry a subscription flag, defaulting to false.
// The caller rejects a flag supplied for any other role beforehand.
func NewUser(email, passwordHash string, role sec.UserRole, profile Profile) *User {
	user := &User{
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     profile.FullName,
		Phone:        profile.Phone,
		Address:      profile.Address,
		City:         profile.City,
		State:        profile.State,
		Country:      profile.Country,
		Picture:      profile.Picture,
		Gender:       profile.Gender,
		Role:         role,
		Status:       StatusPending,
	}
	if role == sec.RoleBusinessOwner {
		subscribed := profile.HaveSubscription != nil && *profile.HaveSubscription
		user.HaveSubscription = &subscribed
	}
	return user
}

// Filter narrows the admin listing. Empty fields match everything.
type Filter struct {
	Roles    []sec.UserRole
	Statuses []Status

	// EmailPrefix matches the start of the normalised email.
	EmailPrefix string
}

// NormalizeEmail canonicalises an address for storage and lookup.
//
// NFKC folds compatibility characters (full-width letters, ligatures) so
// visually identical addresses collide on the unique index.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(email)))
}
