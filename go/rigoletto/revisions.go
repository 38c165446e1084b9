// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package rigoletto

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Revision identifies a hard fork, i.e. the set of rules (available opcodes,
// gas prices, validation rules) in effect for a block. Revisions are totally
// ordered, so a feature introduced by revision X is active for all r >= X.
type Revision int

const (
	Frontier Revision = iota
	FrontierThawing
	Homestead
	DaoFork
	Tangerine
	SpuriousDragon
	Byzantium
	Constantinople
	Petersburg
	Istanbul
	MuirGlacier
	Berlin
	London
	ArrowGlacier
	GrayGlacier
	Merge
	Shanghai
	Cancun
	// Latest always maps to the newest revision supported by this engine.
	Latest
)

// NewestRevision is the revision Latest resolves to.
const NewestRevision = Cancun

var revisionNames = [...]string{
	Frontier:        "Frontier",
	FrontierThawing: "FrontierThawing",
	Homestead:       "Homestead",
	DaoFork:         "DaoFork",
	Tangerine:       "Tangerine",
	SpuriousDragon:  "SpuriousDragon",
	Byzantium:       "Byzantium",
	Constantinople:  "Constantinople",
	Petersburg:      "Petersburg",
	Istanbul:        "Istanbul",
	MuirGlacier:     "MuirGlacier",
	Berlin:          "Berlin",
	London:          "London",
	ArrowGlacier:    "ArrowGlacier",
	GrayGlacier:     "GrayGlacier",
	Merge:           "Merge",
	Shanghai:        "Shanghai",
	Cancun:          "Cancun",
	Latest:          "Latest",
}

func (r Revision) String() string {
	if r < 0 || int(r) >= len(revisionNames) {
		return fmt.Sprintf("Revision(%d)", r)
	}
	return revisionNames[r]
}

// Resolve maps Latest to the concrete revision it stands for.
func (r Revision) Resolve() Revision {
	if r == Latest {
		return NewestRevision
	}
	return r
}

// IsValid reports whether r is one of the known revisions.
func (r Revision) IsValid() bool {
	return r >= Frontier && r <= Latest
}

// IsAtLeast reports whether the rules of revision o are active under r.
func (r Revision) IsAtLeast(o Revision) bool {
	return r.Resolve() >= o.Resolve()
}

// ParseRevision parses a revision name. Matching is case insensitive and
// accepts a few common aliases.
func ParseRevision(name string) (Revision, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, cur := range revisionNames {
		if strings.ToLower(cur) == name {
			return Revision(i), nil
		}
	}
	switch name {
	case "tangerinewhistle", "eip150":
		return Tangerine, nil
	case "paris":
		return Merge, nil
	case "":
		return Latest, nil
	}
	return 0, fmt.Errorf("unknown revision: %q", name)
}

func (r Revision) MarshalJSON() ([]byte, error) {
	if !r.IsValid() {
		return nil, &json.UnsupportedValueError{Str: r.String()}
	}
	return json.Marshal(r.String())
}

func (r *Revision) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	revision, err := ParseRevision(s)
	if err != nil {
		return err
	}
	*r = revision
	return nil
}

func (r Revision) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("invalid revision %d", r)
	}
	return []byte(r.String()), nil
}

func (r *Revision) UnmarshalText(data []byte) error {
	revision, err := ParseRevision(string(data))
	if err != nil {
		return err
	}
	*r = revision
	return nil
}

// ErrUnsupportedRevision is returned by components asked to run under a
// revision they have no rules for.
type ErrUnsupportedRevision struct {
	Revision Revision
}

func (e *ErrUnsupportedRevision) Error() string {
	return fmt.Sprintf("unsupported revision %v", e.Revision)
}
