package model

// GuildPreview is the lightweight guild summary returned by the platform
// preview endpoint. Member counts are approximate by contract.
type GuildPreview struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	Description              string `json:"description"`
	ApproximateMemberCount   int    `json:"approximate_member_count"`
	ApproximatePresenceCount int    `json:"approximate_presence_count"`
}
