package program

import "time"

// Program is a named project grouping observation requests. A program is
// owned by a single user; only its name may change after creation.
type Program struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
