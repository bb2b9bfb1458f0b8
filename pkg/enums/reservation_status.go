package enums

import (
	"fmt"
	"strings"
)

type ReservationStatus string

const (
	ReservationStatusHeld      ReservationStatus = "held"
	ReservationStatusCommitted ReservationStatus = "committed"
	ReservationStatusReleased  ReservationStatus = "released"
)

func (s ReservationStatus) String() string {
	return string(s)
}

func (s ReservationStatus) IsValid() bool {
	switch s {
	case ReservationStatusHeld, ReservationStatusCommitted, ReservationStatusReleased:
		return true
	default:
		return false
	}
}

func ParseReservationStatus(value string) (ReservationStatus, error) {
	s := ReservationStatus(strings.ToLower(strings.TrimSpace(value)))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid reservation status: %q", value)
	}
	return s, nil
}
