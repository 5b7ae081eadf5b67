// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// # Defaults

const (
	// Used when the configuration leaves a deadline unset.
	defaultStorageTimeout  = 3 * time.Second
	defaultDeliveryTimeout = 5 * time.Second

	// MinPasswordBytes is the shortest accepted password; 72 is bcrypt's ceiling.
	MinPasswordBytes = 8

	// MaxFullNameLength bounds the display name.
	MaxFullNameLength = 100

	// Profile column widths.
	MaxAddressLength = 255
	MaxRegionLength  = 100
	MaxPictureLength = 500
)

// # Payload Fields

const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldNewPassword     = "new_password"
	FieldCurrentPassword = "current_password"
	FieldFullName        = "full_name"
	FieldPhone           = "phone"
	FieldAddress         = "address"
	FieldCity            = "city"
	FieldState           = "state"
	FieldCountry         = "country"
	FieldPicture         = "picture"
	FieldGender          = "gender"
	FieldSubscription    = "have_subscription"
	FieldRole            = "role"
	FieldUserType        = "user_type"
	FieldOTP             = "otp"
	FieldPurpose         = "purpose"
	FieldRefreshToken    = "refresh_token"
	FieldStatus          = "status"
	FieldRevoked         = "revoked"
)
