// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package credential_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/marketplace-auth/internal/platform/sec"
	"github.com/taibuivan/marketplace-auth/internal/users/credential"
)

/*
TestStatus_CanTransitionTo walks the account state machine.
*/
func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from credential.Status
		to   credential.Status
		want bool
	}{
		{credential.StatusPending, credential.StatusActive, true},
		{credential.StatusPending, credential.StatusSuspended, false},
		{credential.StatusPending, credential.StatusDeleted, false},
		{credential.StatusActive, credential.StatusSuspended, true},
		{credential.StatusActive, credential.StatusDeleted, true},
		{credential.StatusActive, credential.StatusPending, false},
		{credential.StatusSuspended, credential.StatusActive, false},
		{credential.StatusSuspended, credential.StatusDeleted, false},
		{credential.StatusDeleted, credential.StatusActive, false},
		{credential.StatusDeleted, credential.StatusSuspended, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

/*
TestStatus_CanAdministerTo keeps activation out of administrators' hands.
*/
func TestStatus_CanAdministerTo(t *testing.T) {
	tests := []struct {
		from credential.Status
		to   credential.Status
		want bool
	}{
		{credential.StatusPending, credential.StatusActive, false},
		{credential.StatusPending, credential.StatusDeleted, false},
		{credential.StatusActive, credential.StatusSuspended, true},
		{credential.StatusActive, credential.StatusDeleted, true},
		{credential.StatusSuspended, credential.StatusActive, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanAdministerTo(tt.to))
		})
	}
}

/*
TestNormalizeEmail folds case, whitespace and compatibility forms.
*/
func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a@x.com", "a@x.com"},
		{"  A@X.Com ", "a@x.com"},
		{"ａ@ｘ.com", "a@x.com"},
		{"Ｊｏｈｎ@Example.COM", "john@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, credential.NormalizeEmail(tt.input))
		})
	}
}

/*
TestGender_Valid accepts the known values and the unset one.
*/
func TestGender_Valid(t *testing.T) {
	tests := []struct {
		gender credential.Gender
		want   bool
	}{
		{"", true},
		{credential.GenderMale, true},
		{credential.GenderFemale, true},
		{credential.GenderOther, true},
		{"male", false},
		{"UNSPECIFIED", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.gender), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.gender.Valid())
		})
	}
}

/*
TestNewUser copies the profile and flags only business owners.
*/
func TestNewUser(t *testing.T) {
	subscribed := true
	profile := credential.Profile{
		FullName: "Ada",
		Address:  "1 Main St",
		Picture:  "https://cdn.example.com/ada.png",
		Gender:   credential.GenderFemale,
	}

	tests := []struct {
		name             string
		role             sec.UserRole
		haveSubscription *bool
		want             *bool
	}{
		{"customer", sec.RoleCustomer, nil, nil},
		{"admin", sec.RoleAdmin, nil, nil},
		{"business_owner_default", sec.RoleBusinessOwner, nil, new(bool)},
		{"business_owner_subscribed", sec.RoleBusinessOwner, &subscribed, &subscribed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := profile
			input.HaveSubscription = tt.haveSubscription

			user := credential.NewUser("ada@example.com", "hash", tt.role, input)

			require.NotNil(t, user)
			assert.Equal(t, credential.StatusPending, user.Status)
			assert.Equal(t, "1 Main St", user.Address)
			assert.Equal(t, credential.GenderFemale, user.Gender)
			assert.Equal(t, tt.want, user.HaveSubscription)
		})
	}
}
