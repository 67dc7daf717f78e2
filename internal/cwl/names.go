package cwl

import (
	"fmt"
	"math/rand"
)

// MaxWorkflowIDLen leaves headroom under the process identifier limit for
// the scatter prefix added to chipped submissions.
const MaxWorkflowIDLen = 18

// Word lists are sized so that adjective + animal + "-NNN-" always fits
// within MaxWorkflowIDLen.
var nameAdjectives = []string{
	"amber", "bold", "brave", "calm", "clear", "crisp", "eager",
	"fair", "fleet", "keen", "lucid", "merry", "noble", "quick",
	"smart", "sunny", "swift", "vivid", "warm", "witty",
}

var nameAnimals = []string{
	"bat", "bee", "crane", "crow", "deer", "fox", "hare",
	"heron", "ibis", "kite", "lark", "lynx", "mole", "otter",
	"owl", "seal", "stork", "swan", "tern", "wren",
}

// GenerateWorkflowID produces a random human-readable workflow identifier
// of the form adjective-animal-NNN, guaranteed to satisfy the identifier
// grammar and length limit.
func GenerateWorkflowID() string {
	adj := nameAdjectives[rand.Intn(len(nameAdjectives))]
	animal := nameAnimals[rand.Intn(len(nameAnimals))]
	return fmt.Sprintf("%s-%s-%03d", adj, animal, 100+rand.Intn(900))
}
