package service

import (
    "regexp"
    "strconv"
    "strings"

    "github.com/iliyamo/canteen-seat-booking/internal/model"
)

// seatNotesPattern matches the annotation order notes carry when the
// customer picked seats, e.g. "Seats booked: 12, 14, 15".  The label is
// case-insensitive and the capture is the comma-separated number list.
var seatNotesPattern = regexp.MustCompile(`(?i)Seats booked:\s*([\d,\s]+)`)

// ParseSeatNumbers extracts seat numbers from free-text order notes.
// Tokens that are not integers or fall outside 1..100 are silently
// dropped; notes without the annotation yield an empty slice, never an
// error.  Order of appearance is preserved.
func ParseSeatNumbers(notes string) []int {
    m := seatNotesPattern.FindStringSubmatch(notes)
    if m == nil {
        return nil
    }
    var seats []int
    for _, tok := range strings.Split(m[1], ",") {
        n, err := strconv.Atoi(strings.TrimSpace(tok))
        if err != nil || !model.ValidSeatNumber(n) {
            continue
        }
        seats = append(seats, n)
    }
    return seats
}
