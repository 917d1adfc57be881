package rules

import (
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a weak ETag identifying the content of a rule set.
// Two sets with the same source and rules in the same order share a fingerprint.
func Fingerprint(s RuleSet) string {
	blob, _ := json.Marshal(s)
	return `W/"` + strconv.FormatUint(xxhash.Sum64(blob), 16) + `"`
}
