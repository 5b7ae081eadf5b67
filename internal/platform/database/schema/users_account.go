// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the tables and columns of the users schema so that
// dynamic queries (filters, ordering) are built from one source of truth.
package schema

import "github.com/taibuivan/marketplace-auth/internal/platform/constants"

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table        string
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	Phone        string
	Address      string
	City         string
	State        string
	Country      string
	Picture      string
	Gender       string
	Role         string
	Status       string
	LastLoginAt  string
	CreatedAt    string
	UpdatedAt    string

	// EmailUniqueIndex guards lower(email) against duplicates.
	EmailUniqueIndex string
	// PhoneUniqueIndex guards phone numbers when present.
	PhoneUniqueIndex string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:            constants.SchemaUsers + ".account",
	ID:               "id",
	Email:            "email",
	PasswordHash:     "passwordhash",
	FullName:         "fullname",
	Phone:            "phone",
	Address:          "address",
	City:             "city",
	State:            "state",
	Country:          "country",
	Picture:          "picture",
	Gender:           "gender",
	Role:             "role",
	Status:           "status",
	LastLoginAt:      "lastloginat",
	CreatedAt:        "createdat",
	UpdatedAt:        "updatedat",
	EmailUniqueIndex: "account_email_lower_key",
	PhoneUniqueIndex: "account_phone_key",
}

// Columns returns all standard column names in scan order.
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Email, t.PasswordHash, t.FullName, t.Phone,
		t.Address, t.City, t.State, t.Country, t.Picture, t.Gender,
		t.Role, t.Status, t.LastLoginAt, t.CreatedAt, t.UpdatedAt,
	}
}
