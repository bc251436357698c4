package bench

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bitfsorg/shardwallet-go/shardwallet"
)

// Step operations.
const (
	OpInit     = "init"
	OpSplit    = "split"
	OpMerge    = "merge"
	OpReforge  = "reforge"
	OpClaim    = "claim"
	OpDeposit  = "deposit"
	OpReassign = "reassign"
)

// Step is one wallet operation. Steps without a label run but are not
// reported.
type Step struct {
	Label      string              `yaml:"label,omitempty"`
	Op         string              `yaml:"op"`
	Shard      shardwallet.ID      `yaml:"shard,omitempty"`
	Shards     []shardwallet.ID    `yaml:"shards,omitempty"`
	Children   []shardwallet.Child `yaml:"children,omitempty"`
	Currencies []string            `yaml:"currencies,omitempty"`
	Currency   string              `yaml:"currency,omitempty"`
	Amount     uint64              `yaml:"amount,omitempty"`
	Recipient  string              `yaml:"recipient,omitempty"`
}

// Scenario is a named sequence of steps run against a fresh wallet.
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadScenarios reads scenarios from a YAML file of the form
//
//	scenarios:
//	  - name: ...
//	    steps:
//	      - {label: ..., op: split, shard: 1, children: [...]}
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bench: read %s: %w", path, err)
	}
	return ParseScenarios(data)
}

// ParseScenarios decodes scenario YAML. Unknown keys are rejected.
func ParseScenarios(data []byte) ([]Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f scenarioFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	for i, sc := range f.Scenarios {
		if sc.Name == "" {
			return nil, fmt.Errorf("%w: scenario %d has no name", ErrInvalidScenario, i)
		}
		for j, st := range sc.Steps {
			if !knownOp(st.Op) {
				return nil, fmt.Errorf("%w: %s step %d: %q", ErrUnknownStep, sc.Name, j, st.Op)
			}
		}
	}
	return f.Scenarios, nil
}

func knownOp(op string) bool {
	switch op {
	case OpInit, OpSplit, OpMerge, OpReforge, OpClaim, OpDeposit, OpReassign:
		return true
	}
	return false
}

const (
	benchOwner = "alice"
	benchToken = "token"
)

// Builtin returns the standard scenarios: deploying the wallet, and a tour
// of every operation with the records it initializes and updates.
func Builtin() []Scenario {
	native := []string{"native"}
	token := []string{benchToken}
	return []Scenario{
		{
			Name: "deploy",
			Steps: []Step{
				{Label: "Shardwallet deploy", Op: OpInit, Recipient: benchOwner},
			},
		},
		{
			Name: "basics",
			Steps: []Step{
				{Op: OpInit, Recipient: benchOwner},
				{Op: OpDeposit, Currency: "native", Amount: 1_000_000},
				{Op: OpDeposit, Currency: benchToken, Amount: 1_000_000},
				{Label: "Shardwallet: split with 4 children", Op: OpSplit, Shard: 1, Children: []shardwallet.Child{
					{ShareMicros: 500000, Recipient: benchOwner}, // 2
					{ShareMicros: 300000, Recipient: benchOwner}, // 3
					{ShareMicros: 100000, Recipient: benchOwner}, // 4
					{ShareMicros: 100000, Recipient: benchOwner}, // 5
				}},
				{Label: "Shardwallet: merge with 2 parents", Op: OpMerge, Shards: []shardwallet.ID{4, 5}}, // 6
				{Label: "Shardwallet: native claim initializing 2 records", Op: OpClaim, Shard: 6, Currencies: native},
				{Label: "Shardwallet: token claim initializing 2 records", Op: OpClaim, Shard: 6, Currencies: token},
				{Label: "Shardwallet: native claim initializing 1 record", Op: OpClaim, Shard: 2, Currencies: native},
				{Label: "Shardwallet: token claim initializing 1 record", Op: OpClaim, Shard: 2, Currencies: token},
				{Label: "Shardwallet: no-op native claim", Op: OpClaim, Shard: 2, Currencies: native},
				{Label: "Shardwallet: no-op token claim", Op: OpClaim, Shard: 2, Currencies: token},
				{Op: OpDeposit, Currency: "native", Amount: 1_000_000},
				{Op: OpDeposit, Currency: benchToken, Amount: 1_000_000},
				{Label: "Shardwallet: native claim updating 1 existing record (typical claim)", Op: OpClaim, Shard: 2, Currencies: native},
				{Label: "Shardwallet: token claim updating 1 existing record (typical claim)", Op: OpClaim, Shard: 2, Currencies: token},
				{Label: "Shardwallet: combined native/token claim updating 1 existing record per currency (typical claim)",
					Op: OpClaim, Shard: 6, Currencies: []string{"native", benchToken}},
				{Label: "Shardwallet: reforging 3 parents into 2 children", Op: OpReforge, Shards: []shardwallet.ID{2, 3, 6},
					Children: []shardwallet.Child{
						{ShareMicros: 800000, Recipient: benchOwner}, // 7
						{ShareMicros: 200000, Recipient: benchOwner}, // 8
					}},
				{Label: "Shardwallet: reassign", Op: OpReassign, Shard: 8, Recipient: "bob"},
			},
		},
	}
}
