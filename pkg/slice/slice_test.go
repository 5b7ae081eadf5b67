// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package slice_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/marketplace-auth/pkg/slice"
)

func TestMap(t *testing.T) {
	assert.Nil(t, slice.Map([]string(nil), strings.ToLower))
	assert.Equal(t, []int{1, 3}, slice.Map([]string{"a", "abc"}, func(s string) int { return len(s) }))
}

func TestFilter(t *testing.T) {
	long := func(s string) bool { return len(s) > 2 }

	assert.Equal(t, []string{"abc", "abcd"}, slice.Filter([]string{"a", "abc", "ab", "abcd"}, long))
	assert.Nil(t, slice.Filter([]string{"a"}, long))
	assert.Nil(t, slice.Filter(nil, long))
}
