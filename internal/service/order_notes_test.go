package service

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestParseSeatNumbers(t *testing.T) {
    cases := []struct {
        name  string
        notes string
        want  []int
    }{
        {
            name:  "plain annotation",
            notes: "Seats booked: 12, 14, 15",
            want:  []int{12, 14, 15},
        },
        {
            name:  "case insensitive label",
            notes: "extra sauce please. seats BOOKED: 3,4",
            want:  []int{3, 4},
        },
        {
            name:  "irregular whitespace",
            notes: "Seats booked:   7 ,  8 ,9",
            want:  []int{7, 8, 9},
        },
        {
            name:  "out of range seats dropped",
            notes: "Seats booked: 0, 5, 101, 42",
            want:  []int{5, 42},
        },
        {
            name:  "no annotation",
            notes: "no onions, deliver to table by the window",
            want:  nil,
        },
        {
            name:  "empty notes",
            notes: "",
            want:  nil,
        },
        {
            name:  "single seat",
            notes: "Seats booked: 100",
            want:  []int{100},
        },
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            assert.Equal(t, tc.want, ParseSeatNumbers(tc.notes))
        })
    }
}
