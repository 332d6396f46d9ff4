package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTicketPrefix is used when no board prefix is configured.
const DefaultTicketPrefix = "PT"

// DefaultTicketWidth is the zero-padding width of ticket numbers.
const DefaultTicketWidth = 4

// FormatTicket renders a human-readable identifier such as PT-0004.
func FormatTicket(prefix string, width, number int) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultTicketPrefix
	}
	if width <= 0 {
		width = DefaultTicketWidth
	}
	return fmt.Sprintf("%s-%0*d", prefix, width, number)
}

// ParseTicket returns the numeric suffix of a ticket identifier.
func ParseTicket(ticket string) (string, int, error) {
	ticket = strings.TrimSpace(ticket)
	idx := strings.LastIndex(ticket, "-")
	if idx <= 0 || idx == len(ticket)-1 {
		return "", 0, ErrInvalidTicket
	}
	n, err := strconv.Atoi(ticket[idx+1:])
	if err != nil || n <= 0 {
		return "", 0, ErrInvalidTicket
	}
	return ticket[:idx], n, nil
}
