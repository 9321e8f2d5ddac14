package form

import (
	"math"
	"strings"
	"time"

	"github.com/utafrali/RentMarket/services/storefront/internal/domain"
)

// Controller owns one form's state. It is not safe for concurrent use; the
// service serializes access through the versioned store.
type Controller struct {
	state State
}

// NewController returns a hidden create-mode form.
func NewController(kind domain.EntityKind, entityID string) *Controller {
	return &Controller{state: State{
		Kind:       kind,
		EntityID:   entityID,
		Visibility: Hidden,
		Mode:       ModeCreate,
	}}
}

// Restore resumes a stored form.
func Restore(s State) *Controller {
	if s.Visibility == "" {
		s.Visibility = Hidden
	}
	if s.Mode == "" {
		s.Mode = ModeCreate
	}
	return &Controller{state: s}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	s := c.state
	if s.SubmittingSince != nil {
		t := *s.SubmittingSince
		s.SubmittingSince = &t
	}
	return s
}

// View describes the form without changing it.
func (c *Controller) View() View {
	return View{
		Visibility:      c.state.Visibility,
		Mode:            c.state.Mode,
		ReviewID:        c.state.ReviewID,
		Fields:          c.state.Fields,
		SelectedStars:   c.state.Fields.Score,
		TriggerDisabled: c.state.Visibility == Submitting,
	}
}

// Open shows the form. The mode is decided here, once: edit when the summary
// holds the viewer's review, create otherwise. Opening an already visible
// form changes nothing.
func (c *Controller) Open(summary *domain.RatingSummary) (View, error) {
	switch c.state.Visibility {
	case Submitting:
		return c.View(), ErrSubmitting
	case Visible:
		return c.View(), nil
	}

	c.state.Fields = Fields{}
	c.state.Mode = ModeCreate
	c.state.ReviewID = ""
	if summary != nil {
		if r, ok := summary.ViewerReview(); ok {
			c.state.Mode = ModeEdit
			c.state.ReviewID = r.ID
			c.state.Fields = prefill(r)
		}
	}
	c.state.Visibility = Visible
	c.bump()

	v := c.View()
	v.ScrollIntoView = true
	return v, nil
}

// Toggle opens a hidden form and closes a visible one.
func (c *Controller) Toggle(summary *domain.RatingSummary) (View, error) {
	switch c.state.Visibility {
	case Submitting:
		return c.View(), ErrSubmitting
	case Visible:
		return c.Close()
	default:
		return c.Open(summary)
	}
}

// Close hides the form and discards its inputs.
func (c *Controller) Close() (View, error) {
	if c.state.Visibility == Submitting {
		return c.View(), ErrSubmitting
	}
	if c.state.Visibility != Hidden {
		c.reset()
	}
	return c.View(), nil
}

// SetScore records the overall star selection.
func (c *Controller) SetScore(score int) error {
	if err := c.editable(); err != nil {
		return err
	}
	c.state.Fields.Score = score
	c.bump()
	return nil
}

// SetCategory records one owner category score.
func (c *Controller) SetCategory(name string, score int) error {
	if err := c.editable(); err != nil {
		return err
	}
	if c.state.Kind != domain.KindOwner {
		return ErrUnknownCategory
	}
	switch name {
	case FieldCommunication:
		c.state.Fields.Communication = score
	case FieldReliability:
		c.state.Fields.Reliability = score
	case FieldItemCondition:
		c.state.Fields.ItemCondition = score
	default:
		return ErrUnknownCategory
	}
	c.bump()
	return nil
}

// SetComment records the comment text as typed.
func (c *Controller) SetComment(comment string) error {
	if err := c.editable(); err != nil {
		return err
	}
	c.state.Fields.Comment = comment
	c.bump()
	return nil
}

// SetFields replaces every input at once.
func (c *Controller) SetFields(f Fields) error {
	if err := c.editable(); err != nil {
		return err
	}
	if c.state.Kind != domain.KindOwner {
		f.Communication, f.Reliability, f.ItemCondition = 0, 0, 0
	}
	c.state.Fields = f
	c.bump()
	return nil
}

// Validate checks the current inputs.
func (c *Controller) Validate() error {
	return Validate(c.state.Kind, c.state.Fields)
}

// BeginSubmit validates and, on success, moves the form to submitting and
// returns the submission to send. A failed validation leaves the form visible.
func (c *Controller) BeginSubmit(now time.Time) (domain.Submission, error) {
	if err := c.editable(); err != nil {
		return domain.Submission{}, err
	}
	if err := c.Validate(); err != nil {
		return domain.Submission{}, err
	}

	f := c.state.Fields
	sub := domain.Submission{
		Kind:     c.state.Kind,
		EntityID: c.state.EntityID,
		Mode:     domain.ModeCreate,
		Score:    f.Score,
		Comment:  strings.TrimSpace(f.Comment),
	}
	if c.state.Mode == ModeEdit {
		sub.Mode = domain.ModeUpdate
		sub.ReviewID = c.state.ReviewID
	}
	if c.state.Kind == domain.KindOwner {
		sub.Categories = &domain.CategoryScores{
			Communication: float64(f.Communication),
			Reliability:   float64(f.Reliability),
			ItemCondition: float64(f.ItemCondition),
		}
	}

	since := now.UTC()
	c.state.Visibility = Submitting
	c.state.SubmittingSince = &since
	c.bump()
	return sub, nil
}

// Complete ends a successful submission: inputs reset and the form hides.
func (c *Controller) Complete() {
	c.reset()
}

// Fail ends a failed submission. The form stays open with its inputs so the
// viewer can retry.
func (c *Controller) Fail() {
	if c.state.Visibility != Submitting {
		return
	}
	c.state.Visibility = Visible
	c.state.SubmittingSince = nil
	c.bump()
}

// Expire re-enables a form stuck in submitting for longer than timeout.
// It reports whether the form was released.
func (c *Controller) Expire(now time.Time, timeout time.Duration) bool {
	if c.state.Visibility != Submitting || c.state.SubmittingSince == nil {
		return false
	}
	if now.Sub(*c.state.SubmittingSince) <= timeout {
		return false
	}
	c.Fail()
	return true
}

func (c *Controller) editable() error {
	switch c.state.Visibility {
	case Submitting:
		return ErrSubmitting
	case Visible:
		return nil
	default:
		return ErrNotOpen
	}
}

func (c *Controller) reset() {
	c.state.Visibility = Hidden
	c.state.Mode = ModeCreate
	c.state.ReviewID = ""
	c.state.Fields = Fields{}
	c.state.SubmittingSince = nil
	c.bump()
}

func (c *Controller) bump() {
	c.state.Version++
}

func prefill(r domain.Review) Fields {
	f := Fields{
		Score:   roundScore(r.Score),
		Comment: r.Comment,
	}
	if r.Categories != nil {
		f.Communication = roundScore(r.Categories.Communication)
		f.Reliability = roundScore(r.Categories.Reliability)
		f.ItemCondition = roundScore(r.Categories.ItemCondition)
	}
	return f
}

func roundScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(5, v))))
}
