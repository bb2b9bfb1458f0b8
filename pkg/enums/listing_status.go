package enums

import (
	"fmt"
	"strings"
)

type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusPaused  ListingStatus = "paused"
	ListingStatusSoldOut ListingStatus = "sold_out"
)

func (s ListingStatus) String() string {
	return string(s)
}

func (s ListingStatus) IsValid() bool {
	switch s {
	case ListingStatusActive, ListingStatusPaused, ListingStatusSoldOut:
		return true
	default:
		return false
	}
}

func ParseListingStatus(value string) (ListingStatus, error) {
	s := ListingStatus(strings.ToLower(strings.TrimSpace(value)))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid listing status: %q", value)
	}
	return s, nil
}
