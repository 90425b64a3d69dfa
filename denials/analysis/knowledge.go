package analysis

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/CMSgov/denial-review-app/denials/models"
	"github.com/pkg/errors"
)

//go:embed knowledge.toml
var knowledgeTOML string

type profile struct {
	Name     string            `toml:"name"`
	Keywords []string          `toml:"keywords"`
	Issues   []models.RCAIssue `toml:"issues"`
}

// KnowledgeBase holds the offline root cause profiles.
type KnowledgeBase struct {
	Default  string    `toml:"default"`
	Profiles []profile `toml:"profiles"`

	fallback profile
}

// ParseKnowledgeBase decodes a knowledge base and checks that its default profile exists
// and that every profile has issues.
func ParseKnowledgeBase(data string) (*KnowledgeBase, error) {
	var kb KnowledgeBase
	md, err := toml.Decode(data, &kb)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode knowledge base")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown knowledge base keys: %v", undecoded)
	}

	found := false
	for i, p := range kb.Profiles {
		if len(p.Issues) == 0 {
			return nil, fmt.Errorf("profile %q has no issues", p.Name)
		}
		for j, k := range p.Keywords {
			kb.Profiles[i].Keywords[j] = strings.ToLower(k)
		}
		if p.Name == kb.Default {
			kb.fallback = kb.Profiles[i]
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("default profile %q not defined", kb.Default)
	}
	return &kb, nil
}

func mustParseKnowledgeBase(data string) *KnowledgeBase {
	kb, err := ParseKnowledgeBase(data)
	if err != nil {
		panic(err)
	}
	return kb
}

// DefaultKnowledgeBase is compiled into the binary so offline analysis never depends on
// anything outside the process.
var DefaultKnowledgeBase = mustParseKnowledgeBase(knowledgeTOML)

// Match returns the name and a copy of the issues of the first profile whose keywords
// appear in reason, or the default profile.
func (kb *KnowledgeBase) Match(reason string) (string, []models.RCAIssue) {
	lower := strings.ToLower(reason)
	p := kb.fallback
	for _, candidate := range kb.Profiles {
		if containsAny(lower, candidate.Keywords) {
			p = candidate
			break
		}
	}
	issues := make([]models.RCAIssue, len(p.Issues))
	copy(issues, p.Issues)
	return p.Name, issues
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
