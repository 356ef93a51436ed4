package models

// ReviewerList is the ordered list of reviewer ids on a pull request.
// Order is significant: reassignment swaps a single slot in place and
// leaves every other position untouched. Entries are unique and never
// include the pull request's author.
type ReviewerList []string

func (l ReviewerList) Contains(userID string) bool {
	for _, id := range l {
		if id == userID {
			return true
		}
	}
	return false
}

// Replace swaps the slot holding oldID for newID, preserving position.
// Returns false if oldID is not in the list.
func (l ReviewerList) Replace(oldID, newID string) bool {
	for i, id := range l {
		if id == oldID {
			l[i] = newID
			return true
		}
	}
	return false
}

// Remove returns the list without userID, keeping the remaining order.
func (l ReviewerList) Remove(userID string) ReviewerList {
	out := make(ReviewerList, 0, len(l))
	for _, id := range l {
		if id != userID {
			out = append(out, id)
		}
	}
	return out
}

func (l ReviewerList) Clone() ReviewerList {
	if l == nil {
		return nil
	}
	out := make(ReviewerList, len(l))
	copy(out, l)
	return out
}
