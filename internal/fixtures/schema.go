package fixtures

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	BoardKind              = "board"
	SupportedSchemaVersion = 1
)

var validate = validator.New()

// Board is a self-contained event: challenges with their flags and hints, the
// player's prior solves and optional event window.
type Board struct {
	Kind          string          `yaml:"kind" validate:"required"`
	SchemaVersion int             `yaml:"schema_version" validate:"required,min=1"`
	Name          string          `yaml:"name" validate:"required"`
	Start         *time.Time      `yaml:"start"`
	End           *time.Time      `yaml:"end"`
	Token         string          `yaml:"token"`
	User          UserSpec        `yaml:"user"`
	Challenges    []ChallengeSpec `yaml:"challenges" validate:"required,min=1,dive"`
	Solves        []SolveSpec     `yaml:"solves" validate:"dive"`

	Path string `yaml:"-"`
}

type UserSpec struct {
	Name string `yaml:"name"`
	// Score is the starting balance available for hint unlocks on top of
	// solved challenge values.
	Score int `yaml:"score" validate:"min=0"`
}

type ChallengeSpec struct {
	ID             int        `yaml:"id" validate:"required,min=1"`
	Name           string     `yaml:"name" validate:"required"`
	Category       string     `yaml:"category" validate:"required"`
	Value          int        `yaml:"value" validate:"min=0"`
	Type           string     `yaml:"type"`
	Description    string     `yaml:"description"`
	ConnectionInfo string     `yaml:"connection_info"`
	Tags           []string   `yaml:"tags"`
	Files          []string   `yaml:"files"`
	Flags          []FlagSpec `yaml:"flags" validate:"required,min=1,dive"`
	MaxAttempts    int        `yaml:"max_attempts" validate:"min=0"`
	Requires       []int      `yaml:"requires"`
	Hidden         bool       `yaml:"hidden"`
	Hints          []HintSpec `yaml:"hints" validate:"dive"`
	SolveCount     int        `yaml:"solve_count" validate:"min=0"`
}

type FlagSpec struct {
	Type            string `yaml:"type" validate:"omitempty,oneof=static regex"`
	Content         string `yaml:"content" validate:"required"`
	CaseInsensitive bool   `yaml:"case_insensitive"`
}

type HintSpec struct {
	ID      int    `yaml:"id" validate:"required,min=1"`
	Cost    int    `yaml:"cost" validate:"min=0"`
	Content string `yaml:"content" validate:"required"`
}

type SolveSpec struct {
	ChallengeID int       `yaml:"challenge_id" validate:"required,min=1"`
	Date        time.Time `yaml:"date"`
}

func (b Board) Validate() error {
	if err := validate.Struct(b); err != nil {
		return err
	}
	if b.Kind != BoardKind {
		return fmt.Errorf("kind must be %q", BoardKind)
	}
	if b.SchemaVersion > SupportedSchemaVersion {
		return fmt.Errorf("unsupported board schema_version %d (max supported %d)", b.SchemaVersion, SupportedSchemaVersion)
	}
	if b.Start != nil && b.End != nil && !b.Start.Before(*b.End) {
		return fmt.Errorf("start must be before end")
	}
	ids := map[int]struct{}{}
	for _, c := range b.Challenges {
		if _, ok := ids[c.ID]; ok {
			return fmt.Errorf("duplicate challenge id %d", c.ID)
		}
		ids[c.ID] = struct{}{}
	}
	hintIDs := map[int]struct{}{}
	for _, c := range b.Challenges {
		for _, req := range c.Requires {
			if req == c.ID {
				return fmt.Errorf("challenge %d requires itself", c.ID)
			}
			if _, ok := ids[req]; !ok {
				return fmt.Errorf("challenge %d requires unknown challenge %d", c.ID, req)
			}
		}
		for _, h := range c.Hints {
			if _, ok := hintIDs[h.ID]; ok {
				return fmt.Errorf("duplicate hint id %d", h.ID)
			}
			hintIDs[h.ID] = struct{}{}
		}
		for i, f := range c.Flags {
			if f.Type != "regex" {
				continue
			}
			if _, err := f.compile(); err != nil {
				return fmt.Errorf("challenge %d flags[%d]: %w", c.ID, i, err)
			}
		}
	}
	for _, s := range b.Solves {
		if _, ok := ids[s.ChallengeID]; !ok {
			return fmt.Errorf("solve references unknown challenge %d", s.ChallengeID)
		}
	}
	return nil
}

// Match reports whether answer satisfies the flag. Regex flags must match
// the whole answer.
func (f FlagSpec) Match(answer string) bool {
	switch f.Type {
	case "regex":
		re, err := f.compile()
		if err != nil {
			return false
		}
		return re.MatchString(answer)
	default:
		if f.CaseInsensitive {
			return strings.EqualFold(f.Content, answer)
		}
		return f.Content == answer
	}
}

func (f FlagSpec) compile() (*regexp.Regexp, error) {
	pattern := "^(?:" + f.Content + ")$"
	if f.CaseInsensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex flag: %w", err)
	}
	return re, nil
}

// Open reports whether submissions are accepted at now. A nil bound is
// unbounded on that side.
func (b Board) Open(now time.Time) bool {
	if b.Start != nil && now.Before(*b.Start) {
		return false
	}
	if b.End != nil && !now.Before(*b.End) {
		return false
	}
	return true
}

func (b Board) Challenge(id int) (ChallengeSpec, bool) {
	for _, c := range b.Challenges {
		if c.ID == id {
			return c, true
		}
	}
	return ChallengeSpec{}, false
}
