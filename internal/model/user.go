package model

// User identifies a platform account in membership and invite events.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
