// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

import "github.com/taibuivan/marketplace-auth/internal/platform/constants"

// UserCustomerTable represents the 'users.customer' table
type UserCustomerTable struct {
	Table     string
	UserID    string
	CreatedAt string
}

// UserCustomer is the profile row of a CUSTOMER account.
var UserCustomer = UserCustomerTable{
	Table:     constants.SchemaUsers + ".customer",
	UserID:    "userid",
	CreatedAt: "createdat",
}

// UserBusinessTable represents the 'users.business' table
type UserBusinessTable struct {
	Table            string
	UserID           string
	HaveSubscription string
	CreatedAt        string
}

// UserBusiness is the profile row of a BUSINESS_OWNER account.
var UserBusiness = UserBusinessTable{
	Table:            constants.SchemaUsers + ".business",
	UserID:           "userid",
	HaveSubscription: "havesubscription",
	CreatedAt:        "createdat",
}
