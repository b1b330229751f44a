package ledger

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// ReferencePrefix is the TypeID prefix of public support ids.
const ReferencePrefix = "support"

// NewReference returns a new sortable support id such as "support_01h455vb4pex5vsknk084sn02q".
func NewReference() (string, error) {
	tid, err := typeid.Generate(ReferencePrefix)
	if err != nil {
		return "", fmt.Errorf("generate support id: %w", err)
	}
	return tid.String(), nil
}

// ValidReference reports whether s is a well-formed support id.
func ValidReference(s string) bool {
	tid, err := typeid.Parse(s)
	if err != nil {
		return false
	}
	return tid.Prefix() == ReferencePrefix
}
