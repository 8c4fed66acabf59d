package scoring

import (
	"github.com/spigell/cv-ranker/internal/jobtype"
)

// FallbackAdjuster may lower or raise a lexical score before resolution. Adjusters never see
// model output.
type FallbackAdjuster interface {
	Name() string
	Adjust(job Job, resumeText string, score int) int
}

// IndustryCeiling caps the fallback score of non-technical jobs that belong to an industry the
// resume shows no background in. Lexical overlap on generic words otherwise overrates such pairs.
type IndustryCeiling struct {
	ceiling int
	groups  []jobtype.IndustryGroup
}

// NewIndustryCeiling returns nil when the table disables the heuristic.
func NewIndustryCeiling(table jobtype.IndustryTable) *IndustryCeiling {
	if table.Ceiling <= 0 || len(table.Groups) == 0 {
		return nil
	}
	return &IndustryCeiling{ceiling: table.Ceiling, groups: table.Groups}
}

func (c *IndustryCeiling) Name() string { return "industry-ceiling" }

func (c *IndustryCeiling) Adjust(job Job, resumeText string, score int) int {
	if c == nil || job.Type.IsTechnical() || score <= c.ceiling {
		return score
	}

	for _, group := range c.groups {
		if jobtype.CountHits(job.Text, group.Job) == 0 {
			continue
		}
		if jobtype.CountHits(resumeText, group.Resume) == 0 {
			return c.ceiling
		}
	}
	return score
}
