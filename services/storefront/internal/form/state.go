// Package form holds the review form state machine:
// hidden -> visible -> submitting -> hidden, in create or edit mode.
package form

import (
	"errors"
	"time"

	"github.com/utafrali/RentMarket/services/storefront/internal/domain"
)

// Visibility is the lifecycle state of the form.
type Visibility string

const (
	Hidden     Visibility = "hidden"
	Visible    Visibility = "visible"
	Submitting Visibility = "submitting"
)

// Mode says whether the form creates a review or edits the viewer's existing one.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

var (
	// ErrSubmitting rejects any interaction while a submission is in flight.
	ErrSubmitting = errors.New("review form is submitting")
	// ErrNotOpen rejects edits and submits on a hidden form.
	ErrNotOpen = errors.New("review form is not open")
	// ErrUnknownCategory is returned by SetCategory for names other than the
	// three owner categories, and for item forms.
	ErrUnknownCategory = errors.New("unknown rating category")
)

// Category field names.
const (
	FieldScore         = "score"
	FieldCommunication = "communication"
	FieldReliability   = "reliability"
	FieldItemCondition = "itemCondition"
	FieldComment       = "comment"
)

// Fields are the user inputs. Zero means "not selected" for every score.
type Fields struct {
	Score         int    `json:"score"`
	Comment       string `json:"comment"`
	Communication int    `json:"communication,omitempty"`
	Reliability   int    `json:"reliability,omitempty"`
	ItemCondition int    `json:"itemCondition,omitempty"`
}

// State is the serializable form state for one viewer, entity kind and entity.
// Version increases on every mutation so stores can detect concurrent writers.
type State struct {
	Version         int64             `json:"version"`
	Kind            domain.EntityKind `json:"kind"`
	EntityID        string            `json:"entityId"`
	Visibility      Visibility        `json:"visibility"`
	Mode            Mode              `json:"mode"`
	ReviewID        string            `json:"reviewId,omitempty"`
	Fields          Fields            `json:"fields"`
	SubmittingSince *time.Time        `json:"submittingSince,omitempty"`
}

// View is what the page needs after a form transition.
type View struct {
	Visibility      Visibility `json:"visibility"`
	Mode            Mode       `json:"mode"`
	ReviewID        string     `json:"reviewId,omitempty"`
	Fields          Fields     `json:"fields"`
	SelectedStars   int        `json:"selectedStars"`
	ScrollIntoView  bool       `json:"scrollIntoView"`
	TriggerDisabled bool       `json:"triggerDisabled"`
}
