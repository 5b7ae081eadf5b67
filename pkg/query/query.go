// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package query parses list-style URL query parameters such as
// ?role=CUSTOMER,BUSINESS_OWNER.
package query

import "strings"

// StringSlice splits a comma-separated value into trimmed, upper-cased,
// de-duplicated entries. Empty entries are dropped; an empty value yields nil.
//
// Upper-casing matches the enum spelling used by roles and statuses, so
// ?status=active and ?status=ACTIVE select the same rows.
func StringSlice(val string) []string {
	if strings.TrimSpace(val) == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var res []string
	for _, v := range strings.Split(val, ",") {
		clean := strings.ToUpper(strings.TrimSpace(v))
		if clean == "" {
			continue
		}
		if _, dup := seen[clean]; dup {
			continue
		}
		seen[clean] = struct{}{}
		res = append(res, clean)
	}
	return res
}
