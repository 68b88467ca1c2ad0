package host

import "hash/fnv"

// adjectives and nouns used to build a deterministic two-word friendly name
// from a host key. The value carries no semantic meaning beyond making log
// output easier to read than a raw key.
var adjectives = []string{
	"quiet", "brave", "clever", "swift", "bright", "calm", "eager", "gentle",
	"bold", "vivid", "steady", "keen", "lucky", "merry", "nimble", "plucky",
}

var nouns = []string{
	"falcon", "harbor", "meadow", "ember", "glacier", "willow", "comet",
	"lantern", "canyon", "otter", "thicket", "beacon", "ridge", "tide",
	"orchid", "summit",
}

// friendlyName deterministically derives a two-word name from hostKey so
// the same host always logs under the same friendly name across restarts.
func friendlyName(hostKey string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(hostKey))
	sum := h.Sum32()

	adjective := adjectives[sum%uint32(len(adjectives))]
	noun := nouns[(sum/uint32(len(adjectives)))%uint32(len(nouns))]
	return adjective + "-" + noun
}
