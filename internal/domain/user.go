package domain

// User is a resolved directory entry for a ward or guardian. Cached for
// display and membership checks; authoritative membership lives on-chain.
type User struct {
	Username string `json:"username"`
	Address  string `json:"address"`
}
