package domain

import "time"

// User is the locally signed-in profile
type User struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	CreatedAt time.Time `yaml:"created_at"`
}
