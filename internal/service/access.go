package service

import "identity-service/internal/model"

// Allows evaluates a required-role predicate against the caller's roles.
// An empty requirement means the operation is open to any authenticated
// caller; otherwise any overlap between the two sets grants access.
func Allows(required []model.Role, caller []model.Role) bool {
	if len(required) == 0 {
		return true
	}

	want := make(map[model.Role]struct{}, len(required))
	for _, role := range required {
		want[role] = struct{}{}
	}

	for _, role := range caller {
		if _, ok := want[role]; ok {
			return true
		}
	}
	return false
}
