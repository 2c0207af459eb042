// Package types defines shared types used across the application.
package types

import "time"

// CourseSlot identifies the course offering to book. Day and Time are
// compared verbatim against the listing cells.
type CourseSlot struct {
	Day  string `yaml:"day" env:"KURSBOT_COURSE_DAY" json:"day"`
	Time string `yaml:"time" env:"KURSBOT_COURSE_TIME" json:"time"`
}

func (s CourseSlot) String() string {
	return s.Day + " " + s.Time
}

// CourseRow is one row of the course listing as seen during a single scan.
type CourseRow struct {
	Index           int    `json:"index"`
	RowID           string `json:"rowId,omitempty"`
	Day             string `json:"day"`
	Time            string `json:"time"`
	BookingSelector string `json:"bookingSelector,omitempty"`
	BookingName     string `json:"bookingName,omitempty"`
}

// CourseMatch is the result of matching a CourseSlot against a listing.
// Indicator is set when the row matched but only shows a waitlist or
// autostart marker instead of a booking control.
type CourseMatch struct {
	Found          bool   `json:"found"`
	ButtonSelector string `json:"buttonSelector,omitempty"`
	ButtonName     string `json:"buttonName,omitempty"`
	Indicator      string `json:"indicator,omitempty"`
	RowIndex       int    `json:"rowIndex"`
}

// ButtonDescriptor is a snapshot of one clickable control. Index is only
// meaningful within the snapshot it was taken from.
type ButtonDescriptor struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	ID        string `json:"id"`
	ClassName string `json:"className"`
	Value     string `json:"value,omitempty"`
}

// Caption returns the visible text of the control, falling back to the
// value attribute used by <input type="submit">.
func (b ButtonDescriptor) Caption() string {
	if b.Text != "" {
		return b.Text
	}
	return b.Value
}

// FieldOption is one option of an enumerated field.
type FieldOption struct {
	Value    string `json:"value"`
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
}

// FormField describes one input, select or textarea.
type FormField struct {
	Index       int           `json:"index"`
	Name        string        `json:"name"`
	Type        string        `json:"type"`
	Label       string        `json:"label"`
	Value       string        `json:"value"`
	ID          string        `json:"id"`
	ClassName   string        `json:"className"`
	Required    bool          `json:"required"`
	Disabled    bool          `json:"disabled"`
	ReadOnly    bool          `json:"readOnly"`
	Placeholder string        `json:"placeholder"`
	Options     []FieldOption `json:"options,omitempty"`
}

// Form groups the fields of one <form> element in document order.
type Form struct {
	Index  int         `json:"formIndex"`
	ID     string      `json:"formId"`
	Action string      `json:"formAction"`
	Method string      `json:"formMethod"`
	Fields []FormField `json:"fields"`
}

// UserProfile holds the values entered into the registration form.
type UserProfile struct {
	Gender      string `yaml:"gender" env:"KURSBOT_GENDER"`
	FirstName   string `yaml:"first_name" env:"KURSBOT_FIRST_NAME"`
	LastName    string `yaml:"last_name" env:"KURSBOT_LAST_NAME"`
	Address     string `yaml:"address" env:"KURSBOT_ADDRESS"`
	ZipCity     string `yaml:"zip_city" env:"KURSBOT_ZIP_CITY"`
	Status      string `yaml:"status" env:"KURSBOT_STATUS"`
	StudentID   string `yaml:"student_id" env:"KURSBOT_STUDENT_ID"`
	Email       string `yaml:"email" env:"KURSBOT_EMAIL"`
	Phone       string `yaml:"phone" env:"KURSBOT_PHONE"`
	AcceptTerms bool   `yaml:"accept_terms" env:"KURSBOT_ACCEPT_TERMS"`
}

// State is a state of the booking workflow. States only ever move forward.
type State string

const (
	StateStart          State = "start"
	StateNavigated      State = "navigated"
	StateCourseMatched  State = "course_matched"
	StateBooked         State = "booked"
	StateConfirmClicked State = "confirm_clicked"
	StateFormPageReady  State = "form_page_ready"
	StateFormFilled     State = "form_filled"
	StateSubmitted      State = "submitted"
	StateFinalConfirmed State = "final_confirmed"
	StateFailed         State = "failed"
)

// Outcome is the terminal tag of a workflow run.
type Outcome string

const (
	OutcomeCourseNotFound         Outcome = "CourseNotFound"
	OutcomePopupTimeout           Outcome = "PopupTimeout"
	OutcomeConfirmControlNotFound Outcome = "ConfirmControlNotFound"
	OutcomeFormFillFailed         Outcome = "FormFillFailed"
	OutcomeSubmitUncertain        Outcome = "SubmitUncertain"
	OutcomeFinalConfirmUncertain  Outcome = "FinalConfirmUncertain"
	OutcomeSuccess                Outcome = "Success"
)

// Failed reports whether the outcome aborted the workflow.
func (o Outcome) Failed() bool {
	switch o {
	case OutcomeCourseNotFound, OutcomePopupTimeout, OutcomeConfirmControlNotFound, OutcomeFormFillFailed:
		return true
	}
	return false
}

// StageEvent records a state transition of a run.
type StageEvent struct {
	State State     `json:"state"`
	At    time.Time `json:"at"`
	Note  string    `json:"note,omitempty"`
}

// RunReport summarizes one workflow run.
type RunReport struct {
	RunID           string       `json:"runId"`
	TargetURL       string       `json:"targetUrl"`
	Slot            CourseSlot   `json:"slot"`
	Outcome         Outcome      `json:"outcome"`
	State           State        `json:"state"`
	Error           string       `json:"error,omitempty"`
	Started         time.Time    `json:"started"`
	Finished        time.Time    `json:"finished"`
	Course          CourseMatch  `json:"course"`
	ConfirmControl  string       `json:"confirmControl,omitempty"`
	Forms           []Form       `json:"forms,omitempty"`
	SubmitConfirmed bool         `json:"submitConfirmed"`
	SubmitMarker    string       `json:"submitMarker,omitempty"`
	FinalMarker     string       `json:"finalMarker,omitempty"`
	Trace           []StageEvent `json:"trace"`
}

// SnapshotKind selects what a diagnostic capture persists.
type SnapshotKind int

const (
	SnapshotHTML SnapshotKind = 1 << iota
	SnapshotScreenshot
	SnapshotAll = SnapshotHTML | SnapshotScreenshot
)
