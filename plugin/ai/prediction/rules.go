package prediction

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// Rule table keys.
const (
	TypeEveningRush      = "evening-rush"
	TypePeakHours        = "peak-hours"
	TypeWeeknightOptimal = "weeknight-optimal"
)

// Outcome is the qualitative result of a prediction.
type Outcome string

const (
	OutcomeGettingBusier Outcome = "getting_busier"
	OutcomeQuietingDown  Outcome = "quieting_down"
	OutcomePeakCrowd     Outcome = "peak_crowd"
	OutcomeOptimalTime   Outcome = "optimal_time"
	OutcomeBestValue     Outcome = "best_value"
	OutcomeFriendsGather Outcome = "friends_gathering"
)

// Facts are the venue attributes a rule condition can reference.
// Condition variables: crowd_level, wait_time, energy, hour, friends (int),
// popularity (double), weekend (bool), venue_type, price_level, trend (string).
type Facts struct {
	VenueID    string
	VenueName  string
	VenueType  string
	CrowdLevel int
	WaitTime   int
	Energy     int
	PriceLevel string
	Popularity float64
	Hour       int
	Weekend    bool
	Trend      string
	Friends    int
}

func (f Facts) activation() map[string]any {
	return map[string]any{
		"crowd_level": int64(f.CrowdLevel),
		"wait_time":   int64(f.WaitTime),
		"energy":      int64(f.Energy),
		"hour":        int64(f.Hour),
		"friends":     int64(f.Friends),
		"popularity":  f.Popularity,
		"weekend":     f.Weekend,
		"venue_type":  f.VenueType,
		"price_level": f.PriceLevel,
		"trend":       f.Trend,
	}
}

// Rule maps a CEL condition to a prediction. Message is a format string taking the venue name.
type Rule struct {
	Type       string
	Name       string
	Condition  string
	Outcome    Outcome
	Confidence float64
	Timeframe  string
	Message    string
	Action     string
}

// DefaultRules is the built-in table, evaluated in order within each type.
func DefaultRules() []Rule {
	return []Rule{
		{
			Type: TypeEveningRush, Name: "filling-up",
			Condition:  `hour >= 18 && hour < 22 && crowd_level < 60`,
			Outcome:    OutcomeGettingBusier,
			Confidence: 0.75,
			Timeframe:  "next hour",
			Message:    "%s is filling up. Head over in the next hour to beat the rush.",
			Action:     "Go now",
		},
		{
			Type: TypeEveningRush, Name: "already-busy",
			Condition:  `hour >= 18 && hour < 22 && crowd_level >= 60`,
			Outcome:    OutcomePeakCrowd,
			Confidence: 0.7,
			Timeframe:  "next 2 hours",
			Message:    "%s is already busy and will stay packed tonight.",
			Action:     "Check the line",
		},
		{
			Type: TypePeakHours, Name: "at-capacity",
			Condition:  `crowd_level >= 80 || wait_time >= 15`,
			Outcome:    OutcomePeakCrowd,
			Confidence: 0.85,
			Timeframe:  "now",
			Message:    "%s is near capacity right now. Expect a wait at the door.",
			Action:     "See alternatives",
		},
		{
			Type: TypePeakHours, Name: "building",
			Condition:  `crowd_level >= 50 && (trend == "rising" || trend == "peak")`,
			Outcome:    OutcomeGettingBusier,
			Confidence: 0.7,
			Timeframe:  "next 30 minutes",
			Message:    "%s is heating up fast.",
			Action:     "Go now",
		},
		{
			Type: TypePeakHours, Name: "friends-there",
			Condition:  `friends >= 2`,
			Outcome:    OutcomeFriendsGather,
			Confidence: 0.8,
			Timeframe:  "now",
			Message:    "Your friends are gathering at %s.",
			Action:     "Join them",
		},
		{
			Type: TypeWeeknightOptimal, Name: "no-wait",
			Condition:  `!weekend && crowd_level < 50 && wait_time == 0`,
			Outcome:    OutcomeOptimalTime,
			Confidence: 0.8,
			Timeframe:  "next 2 hours",
			Message:    "Good time for %s: no line and plenty of room.",
			Action:     "Plan a visit",
		},
		{
			Type: TypeWeeknightOptimal, Name: "cheap-night",
			Condition:  `!weekend && (price_level == "low" || price_level == "medium")`,
			Outcome:    OutcomeBestValue,
			Confidence: 0.65,
			Timeframe:  "tonight",
			Message:    "%s has easy pricing tonight.",
			Action:     "See details",
		},
	}
}

// Generated is the result of evaluating the rule table for one venue.
type Generated struct {
	Outcome     Outcome `json:"prediction"`
	Confidence  float64 `json:"confidence"`
	Timeframe   string  `json:"timeframe"`
	Message     string  `json:"message"`
	ActionLabel string  `json:"actionLabel"`
	Rule        string  `json:"rule"`
}

type compiledRule struct {
	Rule
	prg cel.Program
}

// Generator evaluates compiled rules per prediction type.
type Generator struct {
	rules  map[string][]compiledRule
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator compiles rules. A nil rng uses a randomly seeded PCG.
func NewGenerator(rules []Rule, rng *rand.Rand) (*Generator, error) {
	env, err := cel.NewEnv(
		cel.Variable("crowd_level", cel.IntType),
		cel.Variable("wait_time", cel.IntType),
		cel.Variable("energy", cel.IntType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("friends", cel.IntType),
		cel.Variable("popularity", cel.DoubleType),
		cel.Variable("weekend", cel.BoolType),
		cel.Variable("venue_type", cel.StringType),
		cel.Variable("price_level", cel.StringType),
		cel.Variable("trend", cel.StringType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create rule environment")
	}

	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	g := &Generator{
		rules:  map[string][]compiledRule{},
		logger: slog.Default().With("component", "prediction.rules"),
		rng:    rng,
	}
	for _, r := range rules {
		ast, iss := env.Compile(r.Condition)
		if iss != nil && iss.Err() != nil {
			return nil, errors.Wrapf(iss.Err(), "rule %s/%s", r.Type, r.Name)
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, errors.Errorf("rule %s/%s: condition must be bool, got %v", r.Type, r.Name, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, errors.Wrapf(err, "rule %s/%s", r.Type, r.Name)
		}
		g.rules[r.Type] = append(g.rules[r.Type], compiledRule{Rule: r, prg: prg})
	}
	return g, nil
}

// MustDefaultGenerator compiles DefaultRules and panics on error.
func MustDefaultGenerator(rng *rand.Rand) *Generator {
	g, err := NewGenerator(DefaultRules(), rng)
	if err != nil {
		panic(err)
	}
	return g
}

// Types returns the known prediction types.
func (g *Generator) Types() []string {
	out := make([]string, 0, len(g.rules))
	for t := range g.rules {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Generate returns the first matching rule of predictionType, or a randomized
// rising/falling default when none matches.
func (g *Generator) Generate(predictionType string, f Facts) Generated {
	act := f.activation()
	for _, r := range g.rules[predictionType] {
		out, _, err := r.prg.Eval(act)
		if err != nil {
			g.logger.Warn("rule evaluation failed", "rule", r.Name, "type", r.Type, "error", err)
			continue
		}
		if matched, ok := out.Value().(bool); ok && matched {
			return Generated{
				Outcome:     r.Outcome,
				Confidence:  r.Confidence,
				Timeframe:   r.Timeframe,
				Message:     fmt.Sprintf(r.Message, f.VenueName),
				ActionLabel: r.Action,
				Rule:        r.Name,
			}
		}
	}
	return g.fallback(f)
}

func (g *Generator) fallback(f Facts) Generated {
	g.mu.Lock()
	rising := g.rng.IntN(2) == 0
	conf := 0.5 + g.rng.Float64()*0.2
	g.mu.Unlock()

	gen := Generated{
		Confidence:  math.Round(conf*100) / 100,
		Timeframe:   "next 2 hours",
		ActionLabel: "View venue",
		Rule:        "fallback",
	}
	if rising {
		gen.Outcome = OutcomeGettingBusier
		gen.Message = fmt.Sprintf("%s is expected to get busier.", f.VenueName)
	} else {
		gen.Outcome = OutcomeQuietingDown
		gen.Message = fmt.Sprintf("%s should quiet down soon.", f.VenueName)
	}
	return gen
}
