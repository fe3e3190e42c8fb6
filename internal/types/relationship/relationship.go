package relationship

// Relationship is one entry from a bulk friendships lookup: the live
// connection between a source account and one target, as of the lookup.
// It only lives for the duration of one batch's classification.
type Relationship struct {
	UID         string   `json:"id_str"`
	ScreenName  string   `json:"screen_name"`
	Connections []string `json:"connections"`
}

const (
	ConnectionFollowing  = "following"
	ConnectionFollowedBy = "followed_by"
	ConnectionBlocking   = "blocking"
)

// Has reports whether the relationship carries the given connection tag.
func (r *Relationship) Has(connection string) bool {
	for _, c := range r.Connections {
		if c == connection {
			return true
		}
	}
	return false
}
