package ward

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sex enumerates the values accepted by the intake form.
type Sex string

const (
	SexMale   Sex = "Male"
	SexFemale Sex = "Female"
)

// Sexes lists the selectable values in display order.
var Sexes = []Sex{SexMale, SexFemale}

// FrequencyMeasure is the colour-coded monitoring category of a patient.
type FrequencyMeasure string

const (
	FrequencyRed    FrequencyMeasure = "Red"
	FrequencyGreen  FrequencyMeasure = "Green"
	FrequencyBlue   FrequencyMeasure = "Blue"
	FrequencyYellow FrequencyMeasure = "Yellow"
	FrequencyBrown  FrequencyMeasure = "Brown"
)

// FrequencyMeasures lists the selectable values in display order.
var FrequencyMeasures = []FrequencyMeasure{
	FrequencyRed,
	FrequencyGreen,
	FrequencyBlue,
	FrequencyYellow,
	FrequencyBrown,
}

// ParseSex matches value case-insensitively against the known values.
func ParseSex(value string) (Sex, bool) {
	for _, s := range Sexes {
		if strings.EqualFold(strings.TrimSpace(value), string(s)) {
			return s, true
		}
	}
	return "", false
}

// ParseFrequencyMeasure matches value case-insensitively against the known values.
func ParseFrequencyMeasure(value string) (FrequencyMeasure, bool) {
	for _, f := range FrequencyMeasures {
		if strings.EqualFold(strings.TrimSpace(value), string(f)) {
			return f, true
		}
	}
	return "", false
}

// Field names one intake form input. Values match the JSON keys sent to the
// bed service.
type Field string

const (
	FieldFullName         Field = "fullName"
	FieldAge              Field = "age"
	FieldBirthDate        Field = "birthDate"
	FieldSex              Field = "sex"
	FieldCondition        Field = "condition"
	FieldAdmitDateTime    Field = "admitDateTime"
	FieldContactDetails   Field = "contactDetails"
	FieldFrequencyMeasure Field = "frequencyMeasure"
)

// FieldSpec describes a field's display label and whether it must be filled.
type FieldSpec struct {
	Field    Field
	Label    string
	Required bool
}

// intakeFields is the declaration order. Missing-field reports follow it.
var intakeFields = []FieldSpec{
	{Field: FieldFullName, Label: "Full Name", Required: true},
	{Field: FieldAge, Label: "Age", Required: true},
	{Field: FieldBirthDate, Label: "Birth Date", Required: true},
	{Field: FieldSex, Label: "Sex", Required: true},
	{Field: FieldCondition, Label: "Condition", Required: true},
	{Field: FieldAdmitDateTime, Label: "Admit Date & Time"},
	{Field: FieldContactDetails, Label: "Contact Details", Required: true},
	{Field: FieldFrequencyMeasure, Label: "Frequency Measure", Required: true},
}

// IntakeFields returns the field catalogue in declaration order.
func IntakeFields() []FieldSpec {
	out := make([]FieldSpec, len(intakeFields))
	copy(out, intakeFields)
	return out
}

// LookupField returns the spec for name.
func LookupField(name Field) (FieldSpec, bool) {
	for _, spec := range intakeFields {
		if spec.Field == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

const (
	birthDateLayout     = "2006-01-02"
	admitDateTimeLayout = "2006-01-02T15:04"
)

// PatientIntake is the patient record submitted when assigning a bed.
type PatientIntake struct {
	FullName         string           `json:"fullName"`
	Age              int              `json:"age"`
	BirthDate        string           `json:"birthDate"`
	Sex              Sex              `json:"sex"`
	Condition        string           `json:"condition"`
	AdmitDateTime    string           `json:"admitDateTime,omitempty"`
	ContactDetails   string           `json:"contactDetails"`
	FrequencyMeasure FrequencyMeasure `json:"frequencyMeasure"`
}

// IntakeForm holds the raw text a nurse typed into the assignment dialog.
// The zero value is an empty form.
type IntakeForm struct {
	values map[Field]string
}

// NewIntakeForm returns an empty form.
func NewIntakeForm() IntakeForm {
	return IntakeForm{values: map[Field]string{}}
}

// Set stores value for field. Unknown fields are rejected.
func (f *IntakeForm) Set(field Field, value string) error {
	if _, ok := LookupField(field); !ok {
		return fmt.Errorf("ward: unknown intake field %q", field)
	}
	if f.values == nil {
		f.values = map[Field]string{}
	}
	f.values[field] = value
	return nil
}

// Get returns the raw value for field.
func (f IntakeForm) Get(field Field) string {
	return f.values[field]
}

// Clone returns an independent copy of the form.
func (f IntakeForm) Clone() IntakeForm {
	out := NewIntakeForm()
	for k, v := range f.values {
		out.values[k] = v
	}
	return out
}

// Missing returns the labels of every required field left blank, in
// declaration order. Whitespace-only values count as blank.
func (f IntakeForm) Missing() []string {
	var missing []string
	for _, spec := range intakeFields {
		if !spec.Required {
			continue
		}
		if strings.TrimSpace(f.values[spec.Field]) == "" {
			missing = append(missing, spec.Label)
		}
	}
	return missing
}

// Intake validates the form and converts it into a PatientIntake. A
// *ValidationError is returned when required fields are blank; only when
// nothing is missing are the values themselves checked.
func (f IntakeForm) Intake() (PatientIntake, error) {
	if missing := f.Missing(); len(missing) > 0 {
		return PatientIntake{}, &ValidationError{Missing: missing}
	}

	var invalid []string
	intake := PatientIntake{
		FullName:       strings.TrimSpace(f.Get(FieldFullName)),
		BirthDate:      strings.TrimSpace(f.Get(FieldBirthDate)),
		Condition:      strings.TrimSpace(f.Get(FieldCondition)),
		AdmitDateTime:  strings.TrimSpace(f.Get(FieldAdmitDateTime)),
		ContactDetails: strings.TrimSpace(f.Get(FieldContactDetails)),
	}
	age, err := strconv.Atoi(strings.TrimSpace(f.Get(FieldAge)))
	if err != nil || age < 0 {
		invalid = append(invalid, "Age must be a whole number")
	}
	intake.Age = age
	if _, err := time.Parse(birthDateLayout, intake.BirthDate); err != nil {
		invalid = append(invalid, "Birth Date must be YYYY-MM-DD")
	}
	if sex, ok := ParseSex(f.Get(FieldSex)); ok {
		intake.Sex = sex
	} else {
		invalid = append(invalid, "Sex must be Male or Female")
	}
	if intake.AdmitDateTime != "" && !validAdmitDateTime(intake.AdmitDateTime) {
		invalid = append(invalid, "Admit Date & Time must be YYYY-MM-DDTHH:MM")
	}
	if fm, ok := ParseFrequencyMeasure(f.Get(FieldFrequencyMeasure)); ok {
		intake.FrequencyMeasure = fm
	} else {
		invalid = append(invalid, "Frequency Measure must be Red, Green, Blue, Yellow or Brown")
	}
	if len(invalid) > 0 {
		return PatientIntake{}, &ValidationError{Invalid: invalid}
	}
	return intake, nil
}

func validAdmitDateTime(value string) bool {
	if _, err := time.Parse(admitDateTimeLayout, value); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, value)
	return err == nil
}

// ValidationError reports every problem found in an intake form at once.
type ValidationError struct {
	// Missing holds labels of blank required fields in declaration order.
	Missing []string
	// Invalid holds one message per malformed value.
	Invalid []string
}

// Message is the user-facing text shown in the error notification.
func (e *ValidationError) Message() string {
	if len(e.Missing) > 0 {
		return "Please fill in the following required fields:\n\n" + strings.Join(e.Missing, "\n")
	}
	return "Please correct the following fields:\n\n" + strings.Join(e.Invalid, "\n")
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("ward: missing required fields: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("ward: invalid fields: %s", strings.Join(e.Invalid, "; "))
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
