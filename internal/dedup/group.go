package dedup

import "sort"

// buildGroups folds scanned records into duplicate groups. Only digests with
// two or more members are materialized. Members are ordered by parsed date
// ascending, unparseable dates first, ties broken by scan position; groups
// come out largest first, ties broken by their earliest-scanned member, so
// repeated runs on unchanged input give identical output.
func buildGroups(records []MessageRecord) []DuplicateGroup {
	byDigest := make(map[string][]MessageRecord)
	for _, rec := range records {
		byDigest[rec.Digest] = append(byDigest[rec.Digest], rec)
	}

	var groups []DuplicateGroup
	for digest, members := range byDigest {
		if len(members) < 2 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool {
			a, b := members[i], members[j]
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
			return a.before(b)
		})
		groups = append(groups, DuplicateGroup{Digest: digest, Messages: members})
	}

	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if len(a.Messages) != len(b.Messages) {
			return len(a.Messages) > len(b.Messages)
		}
		return firstScanned(a).before(firstScanned(b))
	})
	return groups
}

func firstScanned(g DuplicateGroup) MessageRecord {
	first := g.Messages[0]
	for _, m := range g.Messages[1:] {
		if m.before(first) {
			first = m
		}
	}
	return first
}
