package domain

import "fmt"

// ApprovalState is the review status of a status change request.
type ApprovalState int16

const (
	ApprovalPending ApprovalState = iota + 1
	ApprovalApproved
	ApprovalRejected
	ApprovalUnderReview
	ApprovalCompleted
)

var approvalNames = map[ApprovalState]string{
	ApprovalPending:     "pending",
	ApprovalApproved:    "approved",
	ApprovalRejected:    "rejected",
	ApprovalUnderReview: "under_review",
	ApprovalCompleted:   "completed",
}

// Forward-only transitions. Rejected and Completed are terminal.
var approvalTransitions = map[ApprovalState][]ApprovalState{
	ApprovalPending:     {ApprovalUnderReview, ApprovalApproved, ApprovalRejected},
	ApprovalUnderReview: {ApprovalApproved, ApprovalRejected},
	ApprovalApproved:    {ApprovalCompleted},
}

func (a ApprovalState) Valid() bool {
	_, ok := approvalNames[a]
	return ok
}

func (a ApprovalState) String() string {
	if name, ok := approvalNames[a]; ok {
		return name
	}
	return fmt.Sprintf("approval(%d)", int16(a))
}

// ParseApprovalState resolves a wire name to an ApprovalState.
func ParseApprovalState(name string) (ApprovalState, error) {
	for a, n := range approvalNames {
		if n == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown approval state %q", name)
}

// IsLive reports whether a request in this state still awaits a decision.
func (a ApprovalState) IsLive() bool {
	return a == ApprovalPending || a == ApprovalUnderReview
}

// IsTerminal reports whether no further decision is possible.
func (a ApprovalState) IsTerminal() bool {
	return len(approvalTransitions[a]) == 0
}

// CanTransition reports whether a decision may move a request from a to next.
func (a ApprovalState) CanTransition(next ApprovalState) bool {
	for _, allowed := range approvalTransitions[a] {
		if allowed == next {
			return true
		}
	}
	return false
}
