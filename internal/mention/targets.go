package mention

// TeamMember is the slice of a member record that targeting needs.
type TeamMember struct {
	ID       string
	IsActive bool
}

// ExtractMentionedUserIDs resolves the set of users to notify for content
// authored by authorID. An everyone mention expands to all active members.
// Individual mentions of inactive or unknown users are dropped, the author
// never notifies themself, and each user appears at most once.
func ExtractMentionedUserIDs(content string, members []TeamMember, authorID string) []string {
	active := make(map[string]struct{}, len(members))
	for _, m := range members {
		if m.IsActive {
			active[m.ID] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var targets []string
	add := func(id string) {
		if id == authorID {
			return
		}
		if _, ok := active[id]; !ok {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}

	for _, seg := range Parse(content) {
		switch seg.Type {
		case SegmentMention:
			add(seg.UserID)
		case SegmentEveryone:
			for _, m := range members {
				if m.IsActive {
					add(m.ID)
				}
			}
		}
	}
	return targets
}
