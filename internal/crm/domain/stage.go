// Package domain holds the CRM lead workflow model: pipeline stages,
// approval states, payments and the rules that relate them.
package domain

import "fmt"

// Stage is a pipeline milestone. Ascending values mean forward progress.
type Stage int16

const (
	StageSiteVisit Stage = iota + 1
	StageTokenAdvance
	StageDocumentation
	StagePayment
	StageDocumentDelivery
)

var stageNames = map[Stage]string{
	StageSiteVisit:        "site_visit",
	StageTokenAdvance:     "token_advance",
	StageDocumentation:    "documentation",
	StagePayment:          "payment",
	StageDocumentDelivery: "document_delivery",
}

// StageNames lists the wire names in pipeline order.
func StageNames() []string {
	names := make([]string, 0, len(stageNames))
	for s := StageSiteVisit; s <= StageDocumentDelivery; s++ {
		names = append(names, stageNames[s])
	}
	return names
}

func (s Stage) Valid() bool {
	_, ok := stageNames[s]
	return ok
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int16(s))
}

// ParseStage resolves a wire name to a Stage.
func ParseStage(name string) (Stage, error) {
	for s, n := range stageNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// StageDone reports whether stage n is finished for a lead currently at
// current with approval state approval. A nil current means no stage yet.
func StageDone(n Stage, current *Stage, approval *ApprovalState) bool {
	if current == nil {
		return false
	}
	if *current > n {
		return true
	}
	return *current == n && approval != nil && *approval == ApprovalCompleted
}
