// Package types provides the canonical catalog record types shared by the
// storage layer and its consumers.
//
// The concrete persistence code lives in internal/storage. This package
// holds pure value types: records never carry a database binding; every
// storage operation takes an explicit connection parameter.
package types

import (
	"strings"
	"time"
)

// Node names. The master is authoritative; the slaves hold partitions.
const (
	NodeMaster = "master"
	NodeSlaveA = "slave_a" // Windows-only partition
	NodeSlaveB = "slave_b" // multi-platform partition
)

// Nodes lists every known node, master first.
var Nodes = []string{NodeMaster, NodeSlaveA, NodeSlaveB}

// IsValidNode reports whether name is one of the three known nodes.
func IsValidNode(name string) bool {
	return name == NodeMaster || name == NodeSlaveA || name == NodeSlaveB
}

// Game is the canonical catalog record.
//
// Multi-valued fields are []string in memory and comma-joined only at the
// persistence boundary. Tags is serialized as a JSON object of
// tag -> weight. Timestamps are stored in UTC since DATETIME columns lose
// timezone info.
type Game struct {
	AppID       int64     `json:"AppID"`
	Name        string    `json:"Name"`
	ReleaseDate time.Time `json:"ReleaseDate"`
	RequiredAge int       `json:"RequiredAge"`
	Price       float64   `json:"Price"`

	DetailedDescription string `json:"DetailedDescription,omitempty"`
	AboutGame           string `json:"AboutGame"`
	ShortDescription    string `json:"ShortDescription,omitempty"`
	Reviews             string `json:"Reviews,omitempty"`
	Website             string `json:"Website,omitempty"`
	SupportURL          string `json:"SupportURL,omitempty"`
	SupportEmail        string `json:"SupportEmail,omitempty"`
	HeaderImage         string `json:"HeaderImage,omitempty"`

	Windows bool `json:"Windows"`
	Mac     bool `json:"Mac"`
	Linux   bool `json:"Linux"`

	MetacriticScore int    `json:"MetacriticScore"`
	MetacriticURL   string `json:"MetacriticURL,omitempty"`
	Achievements    int    `json:"Achievements"`
	Recommendations int    `json:"Recommendations"`
	Notes           string `json:"Notes,omitempty"`

	SupportedLanguages []string `json:"SupportedLanguages,omitempty"`
	FullAudioLanguages []string `json:"FullAudioLanguages,omitempty"`
	Developers         []string `json:"Developers"`
	Publishers         []string `json:"Publishers"`
	Categories         []string `json:"Categories"`
	Genres             []string `json:"Genres"`
	Screenshots        []string `json:"Screenshots,omitempty"`
	Movies             []string `json:"Movies,omitempty"`

	UserScore          float64 `json:"UserScore"`
	ScoreRank          string  `json:"ScoreRank,omitempty"`
	PositiveReviews    int     `json:"PositiveReviews"`
	NegativeReviews    int     `json:"NegativeReviews"`
	EstimatedOwnersMin int     `json:"EstimatedOwnersMin"`
	EstimatedOwnersMax int     `json:"EstimatedOwnersMax"`

	AvgPlaytimeForever     int `json:"AvgPlaytimeForever"`
	AvgPlaytimeTwoWeeks    int `json:"AvgPlaytimeTwoWeeks"`
	MedianPlaytimeForever  int `json:"MedianPlaytimeForever"`
	MedianPlaytimeTwoWeeks int `json:"MedianPlaytimeTwoWeeks"`
	PeakCCU                int `json:"PeakCCU"`

	Tags map[string]int `json:"Tags,omitempty"`

	CreatedAt time.Time `json:"CreatedAt"`
	UpdatedAt time.Time `json:"UpdatedAt"`
}

// Normalize fills audit timestamps and forces all times to UTC.
// Call before any insert.
func (g *Game) Normalize() {
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	} else {
		g.CreatedAt = g.CreatedAt.UTC()
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = now
	} else {
		g.UpdatedAt = g.UpdatedAt.UTC()
	}
	if !g.ReleaseDate.IsZero() {
		g.ReleaseDate = g.ReleaseDate.UTC()
	}
}

// Touch refreshes UpdatedAt. Must be called on every mutation.
func (g *Game) Touch() {
	g.UpdatedAt = time.Now().UTC()
}

// Target is the slave partition a record routes to.
type Target int

const (
	// TargetNone routes master-only. Combinations with no Windows flag
	// (Mac-only, Linux-only, none) land here; the validator guarantees at
	// least one platform, the router accepts what it receives.
	TargetNone Target = iota
	// TargetSlaveA is the Windows-only partition.
	TargetSlaveA
	// TargetSlaveB is the multi-platform partition.
	TargetSlaveB
)

func (t Target) String() string {
	switch t {
	case TargetSlaveA:
		return NodeSlaveA
	case TargetSlaveB:
		return NodeSlaveB
	default:
		return "none"
	}
}

// Node returns the node name for the target, or "" for TargetNone.
func (t Target) Node() string {
	switch t {
	case TargetSlaveA:
		return NodeSlaveA
	case TargetSlaveB:
		return NodeSlaveB
	default:
		return ""
	}
}

// Classify applies the partition rule to a set of platform flags:
// Windows and nothing else goes to slave A, Windows plus Mac or Linux
// goes to slave B, everything else stays master-only.
func Classify(windows, mac, linux bool) Target {
	switch {
	case windows && !mac && !linux:
		return TargetSlaveA
	case windows && (mac || linux):
		return TargetSlaveB
	default:
		return TargetNone
	}
}

// RouteTarget classifies the game's own platform flags.
func (g *Game) RouteTarget() Target {
	return Classify(g.Windows, g.Mac, g.Linux)
}

// JoinList serializes a multi-valued column as comma-joined text.
// Empty slices serialize to the empty string.
func JoinList(vals []string) string {
	return strings.Join(vals, ",")
}

// SplitList parses comma-joined column text back into a slice.
// The empty string parses to nil, not [""].
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
