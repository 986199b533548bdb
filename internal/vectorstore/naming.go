package vectorstore

import (
	"fmt"
	"regexp"
	"strings"
)

// collectionNamePattern validates derived collection names before they
// reach Qdrant: letters, numbers and underscores, up to 128 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,128}$`)

// CollectionName derives the per-user collection name: every hyphen in the
// user identifier is replaced by an underscore and the result is prefixed
// with "user_". The mapping is pure and deterministic.
//
// Two identifiers that differ only by hyphen-vs-underscore collide. That is
// acceptable while user identifiers are UUID-style (hyphen-exclusive); a
// reversible encoding would be needed for a wider identifier domain.
func CollectionName(userID string) string {
	return "user_" + strings.ReplaceAll(userID, "-", "_")
}

// ValidateCollectionName rejects names that would be unsafe to hand to the
// store: empty, overlong, or containing characters outside [a-zA-Z0-9_].
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match %s, got %q",
			ErrInvalidCollectionName, collectionNamePattern.String(), name)
	}
	return nil
}

// userCollection derives and validates the collection name for a user.
func userCollection(userID string) (string, error) {
	name := CollectionName(userID)
	if err := ValidateCollectionName(name); err != nil {
		return "", err
	}
	return name, nil
}
