package upload

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/claude/trainplan/internal/models"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// keyNamespace scopes the idempotency keys derived from plan entries.
var keyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("trainplan/submit"))

// Plan is a YAML plan file: days, their sessions and the moveframes to
// create in each session, in letter order.
//
//	days:
//	  - date: 2026-03-09
//	    sessions:
//	      - index: 1
//	        moveframes:
//	          - discipline: swim
//	            sequences:
//	              - {distance: 100, pace: A2, style: free, reps: 4, rest: '20"'}
type Plan struct {
	Days []PlanDay `yaml:"days"`
}

// PlanDay is one calendar day of a plan.
type PlanDay struct {
	Date     string        `yaml:"date"`
	Sessions []PlanSession `yaml:"sessions"`
}

// PlanSession is one workout slot (1..3) of a day.
type PlanSession struct {
	Index      int             `yaml:"index"`
	Moveframes []PlanMoveframe `yaml:"moveframes"`
}

// PlanMoveframe is the create request for one moveframe. The JSON form is
// the body of POST /api/v1/workouts/{id}/moveframes.
type PlanMoveframe struct {
	Discipline  string                   `yaml:"discipline" json:"discipline"`
	Kind        models.Kind              `yaml:"kind,omitempty" json:"kind,omitempty"`
	Sequences   []models.Sequence        `yaml:"sequences,omitempty" json:"sequences,omitempty"`
	Annotations models.GlobalAnnotations `yaml:"annotations,omitempty" json:"annotations"`
	Content     string                   `yaml:"content,omitempty" json:"content,omitempty"`
}

// LoadPlan reads and validates a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes and validates plan YAML.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return &p, nil
}

// Moveframes counts the moveframes across the whole plan.
func (p *Plan) Moveframes() int {
	n := 0
	for _, d := range p.Days {
		for _, s := range d.Sessions {
			n += len(s.Moveframes)
		}
	}
	return n
}

func (p *Plan) validate() error {
	if len(p.Days) == 0 {
		return fmt.Errorf("plan has no days")
	}
	dates := make(map[string]bool, len(p.Days))
	for _, d := range p.Days {
		if _, err := time.Parse(time.DateOnly, d.Date); err != nil {
			return fmt.Errorf("day %q: date must be YYYY-MM-DD", d.Date)
		}
		if dates[d.Date] {
			return fmt.Errorf("day %s listed twice", d.Date)
		}
		dates[d.Date] = true

		sessions := make(map[int]bool, len(d.Sessions))
		for _, s := range d.Sessions {
			if !models.ValidSessionIndex(s.Index) {
				return fmt.Errorf("day %s: session index must be 1..%d, got %d", d.Date, models.MaxSessionsPerDay, s.Index)
			}
			if sessions[s.Index] {
				return fmt.Errorf("day %s: session %d listed twice", d.Date, s.Index)
			}
			sessions[s.Index] = true

			for i, mf := range s.Moveframes {
				if strings.TrimSpace(mf.Discipline) == "" {
					return fmt.Errorf("day %s session %d moveframe %d: discipline is required", d.Date, s.Index, i+1)
				}
			}
		}
	}
	return nil
}

// Key derives the idempotency key of a moveframe from its slot in the plan
// and its content. Re-running an unchanged plan yields the same keys, so the
// server replays instead of creating duplicates; editing an entry yields a
// new key.
func (m PlanMoveframe) Key(date string, session, position int) (string, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding moveframe: %w", err)
	}
	name := fmt.Sprintf("%s|%d|%d|%s", date, session, position, body)
	return uuid.NewSHA1(keyNamespace, []byte(name)).String(), nil
}
