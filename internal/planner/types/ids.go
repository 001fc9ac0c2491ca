package types

import (
	"strings"

	"github.com/google/uuid"
)

// idNamespace scopes every identifier generated by the planner
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("planner.do-it"))

// StableID derives a deterministic identifier from a kind and its parts,
// so re-running an analysis on the same input yields the same ids
func StableID(kind string, parts ...string) string {
	name := kind + ":" + strings.Join(parts, ":")
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}
