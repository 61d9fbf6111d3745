package queue

import "github.com/theRebelliousNerd/desloppify/internal/finding"

// Item is one work-queue entry: a mechanical finding, a synthetic
// subjective-dimension placeholder, or a collapsed auto-cluster. All three
// shapes are ranked by the same sort key so `next`/`plan show` can present
// one unified list.
type Item struct {
	ID            string
	Kind          string // "finding" | "subjective_dimension" | "cluster"
	Detector      string
	File          string
	Tier          int
	EffectiveTier int
	Confidence    finding.Confidence
	Summary       string
	Detail        map[string]any
	Status        string
	ReopenCount   int
	Lang          string

	IsReview        bool
	IsSubjective    bool
	ReviewWeight    float64 // valid only when IsReview
	SubjectiveScore float64 // valid only when IsSubjective or Kind == subjective_dimension

	// MemberCount and ClusterName are set only on Kind == "cluster" items
	// produced by collapsing a run of same-auto-cluster items.
	MemberCount int
	ClusterName string

	PrimaryCommand string

	// Explain is populated only when the caller requested it (BuildOptions.
	// Explain), describing the ranking factors and policy behind this
	// item's position.
	Explain *Explain
}

// Explain describes why an item ranked where it did.
type Explain struct {
	Kind           string
	EffectiveTier  int
	Policy         string
	RankingFactors []string
}
