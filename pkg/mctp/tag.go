// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package mctp

import "fmt"

// TagValue is the three bit message tag value.
type TagValue uint8

// TagValueMax is the highest possible TagValue; there are TagValueMax+1 different values.
const TagValueMax TagValue = 7

// Tag distinguishes concurrent message exchanges between two endpoints.
//
// An owned Tag (the tag owner bit is set) marks a newly originated exchange, i.e., a request. The receiver of a
// request answers with the same TagValue, but without the tag owner bit. Thus, an unowned Tag belongs to a response
// for a request this endpoint has sent earlier.
type Tag struct {
	Owner bool
	Value TagValue
}

// OwnedTag creates a Tag with the tag owner bit set.
func OwnedTag(v TagValue) Tag {
	return Tag{Owner: true, Value: v & TagValueMax}
}

// UnownedTag creates a Tag without the tag owner bit.
func UnownedTag(v TagValue) Tag {
	return Tag{Owner: false, Value: v & TagValueMax}
}

// IsOwner checks the tag owner bit.
func (t Tag) IsOwner() bool {
	return t.Owner
}

// Response derives the Tag to be used for answering a message with this Tag.
func (t Tag) Response() Tag {
	return UnownedTag(t.Value)
}

func (t Tag) String() string {
	if t.Owner {
		return fmt.Sprintf("owned(%d)", t.Value)
	}
	return fmt.Sprintf("unowned(%d)", t.Value)
}
