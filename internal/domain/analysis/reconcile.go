package analysis

import (
	"math"
	"sort"
	"strings"
)

// ReconcileOptions carries the tunables of the merge policy. The defaults
// match the service configuration defaults.
type ReconcileOptions struct {
	// SimilarityThreshold is the minimum token-set Jaccard similarity of two
	// normalized titles for candidates to be considered the same item.
	SimilarityThreshold float64

	// CorroborationBonus is added to the max confidence once per extra
	// corroborating candidate, capped at 100.
	CorroborationBonus float64
}

// DefaultReconcileOptions returns the standard merge policy.
func DefaultReconcileOptions() ReconcileOptions {
	return ReconcileOptions{
		SimilarityThreshold: 0.85,
		CorroborationBonus:  0.1,
	}
}

// Merged is the output of Reconcile before it is bound to a job.
type Merged struct {
	Title            string
	Description      string
	Category         string
	Likelihood       int
	Impact           int
	Confidence       float64
	SourceSegmentIDs []string
	LinkedRiskTitles []string
	FirstOrdinal     int
}

type cluster struct {
	members []RawCandidate
	titles  [][]string // normalized token sets of every member
}

// Reconcile merges duplicate raw candidates across segments. Two candidates
// merge when their categories match (case-insensitive) and any member title
// is at least SimilarityThreshold Jaccard-similar to the incoming title.
//
// Input is sorted by segment ordinal before clustering so first-seen
// tie-breaks are deterministic regardless of extraction completion order.
// Pure function: inputs are not mutated.
func Reconcile(raws []RawCandidate, opts ReconcileOptions) []Merged {
	if opts.SimilarityThreshold <= 0 {
		opts = DefaultReconcileOptions()
	}

	ordered := make([]RawCandidate, len(raws))
	copy(ordered, raws)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SegmentOrdinal < ordered[j].SegmentOrdinal
	})

	var clusters []*cluster
	for _, rc := range ordered {
		tokens := titleTokens(rc.Title)
		placed := false
		for _, cl := range clusters {
			if !strings.EqualFold(cl.members[0].Category, rc.Category) {
				continue
			}
			for _, t := range cl.titles {
				if jaccard(tokens, t) >= opts.SimilarityThreshold {
					cl.members = append(cl.members, rc)
					cl.titles = append(cl.titles, tokens)
					placed = true
					break
				}
			}
			if placed {
				break
			}
		}
		if !placed {
			clusters = append(clusters, &cluster{
				members: []RawCandidate{rc},
				titles:  [][]string{tokens},
			})
		}
	}

	out := make([]Merged, 0, len(clusters))
	for _, cl := range clusters {
		out = append(out, mergeCluster(cl.members, opts))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].FirstOrdinal < out[j].FirstOrdinal
	})
	return out
}

func mergeCluster(members []RawCandidate, opts ReconcileOptions) Merged {
	best := members[0]
	maxConf := clampConfidence(members[0].Confidence)
	for _, m := range members[1:] {
		c := clampConfidence(m.Confidence)
		if c > maxConf {
			maxConf = c
		}
		if clampConfidence(m.Confidence) > clampConfidence(best.Confidence) {
			best = m
		}
	}

	conf := maxConf + opts.CorroborationBonus*float64(len(members)-1)
	if conf > 100 {
		conf = 100
	}

	var likeHints, impactHints []int
	var segIDs, linkTitles []string
	seenSeg := map[string]bool{}
	seenLink := map[string]bool{}
	for _, m := range members {
		likeHints = append(likeHints, m.LikelihoodHint)
		impactHints = append(impactHints, m.ImpactHint)
		if m.SegmentID != "" && !seenSeg[m.SegmentID] {
			seenSeg[m.SegmentID] = true
			segIDs = append(segIDs, m.SegmentID)
		}
		for _, lt := range m.LinkedRiskTitles {
			key := strings.ToLower(strings.TrimSpace(lt))
			if key == "" || seenLink[key] {
				continue
			}
			seenLink[key] = true
			linkTitles = append(linkTitles, lt)
		}
	}

	return Merged{
		Title:            best.Title,
		Description:      best.Description,
		Category:         best.Category,
		Likelihood:       clampScale(median(likeHints)),
		Impact:           clampScale(median(impactHints)),
		Confidence:       conf,
		SourceSegmentIDs: segIDs,
		LinkedRiskTitles: linkTitles,
		FirstOrdinal:     members[0].SegmentOrdinal,
	}
}

// titleTokens lowercases, strips punctuation, and returns the unique token set.
func titleTokens(title string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	fields := strings.Fields(b.String())
	seen := map[string]bool{}
	out := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := map[string]bool{}
	for _, t := range a {
		set[t] = true
	}
	inter := 0
	for _, t := range b {
		if set[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// median of ints; even count takes the mean of the middle pair, rounded half up.
func median(vals []int) int {
	if len(vals) == 0 {
		return 0
	}
	s := make([]int, len(vals))
	copy(s, vals)
	sort.Ints(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return int(math.Floor(float64(s[mid-1]+s[mid])/2 + 0.5))
}

func clampScale(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
