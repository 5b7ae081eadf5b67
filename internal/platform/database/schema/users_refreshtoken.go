// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

import "github.com/taibuivan/marketplace-auth/internal/platform/constants"

// UserRefreshTokenTable represents the 'users.refreshtoken' table
type UserRefreshTokenTable struct {
	Table     string
	ID        string
	UserID    string
	TokenHash string
	UserAgent string
	IPAddress string
	IsRevoked string
	IssuedAt  string
	ExpiresAt string
	RevokedAt string
}

// UserRefreshToken is the schema definition for users.refreshtoken
var UserRefreshToken = UserRefreshTokenTable{
	Table:     constants.SchemaUsers + ".refreshtoken",
	ID:        "id",
	UserID:    "userid",
	TokenHash: "tokenhash",
	UserAgent: "useragent",
	IPAddress: "ipaddress",
	IsRevoked: "isrevoked",
	IssuedAt:  "issuedat",
	ExpiresAt: "expiresat",
	RevokedAt: "revokedat",
}

// Columns returns all standard column names in scan order.
func (t UserRefreshTokenTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.TokenHash, t.UserAgent, t.IPAddress,
		t.IsRevoked, t.IssuedAt, t.ExpiresAt, t.RevokedAt,
	}
}
